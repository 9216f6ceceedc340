package models

// CallbackAction types of inline button actions
type CallbackAction string

const (
	CallbackSummary  CallbackAction = "sum"
	CallbackPeople   CallbackAction = "ppl"
	CallbackUnfollow CallbackAction = "unf"
	CallbackPurge    CallbackAction = "prg"
)

// CallbackData is the payload of a group inline button
type CallbackData struct {
	Action CallbackAction `json:"a"`
	Tag    string         `json:"t"`
}
