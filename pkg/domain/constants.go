package domain

// KeySkipStartingMessage is the preference key that suppresses the onboarding
// message when set to true.
const KeySkipStartingMessage = "SKIP_STARTING_MESSAGE"

// MessageInterrupted is the failure message of fetches lost in a restart.
const MessageInterrupted = "interrupted"
