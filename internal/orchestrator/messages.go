package orchestrator

// Canonical assistant texts. The guided follow-up rule keys off these, so
// they live in one place.
const (
	promptAskName  = "Found your product! To save this quote, who am I speaking with?"
	promptAskEmail = "Thank you! What's your best email?"
	promptAskPhone = "Perfect. And to finish, what's your WhatsApp/phone number?"
	msgAllSet      = "All set! I've got your details."

	promptHandover      = "Of course, I can hand you over to a specialist. What's your WhatsApp number? Or would you rather share an email?"
	msgHandoverDeclined = "Understood. If you change your mind, just ask to talk to a specialist."

	msgExtractionError = "Sorry, I couldn't reach the assistant. Please try sending that again."

	ackWithName    = "Thanks, %s!"
	ackWithoutName = "Thanks, I've got your details!"

	loadingText = "..."
)

// Distinctive fragments used to recognize which prompt was last posted.
// Matching on fragments keeps the rule tolerant of copy tweaks.
const (
	fragmentAskName  = "who am I speaking with"
	fragmentAskEmail = "best email"
	fragmentAskPhone = "WhatsApp/phone"
)
