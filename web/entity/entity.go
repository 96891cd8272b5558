// Package entity defines the JSON shapes returned by the web layer.
package entity

// Msg is the envelope of JSON error responses.
type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj,omitempty"`
}
