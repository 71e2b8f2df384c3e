package domain

// Turn is one operator utterance with the customer's private inner activity
// and public reply. Turns are immutable once recorded.
type Turn struct {
	Question      string `json:"question"`
	InnerActivity string `json:"inner_activity"`
	Response      string `json:"response"`
}
