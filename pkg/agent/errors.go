// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package agent

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// StatusError is returned when the agent answers with a non-success status.
type StatusError struct {
	Code   int
	Reason string

	// Errors is the MTConnectError document the agent sent with the status,
	// if any.
	Errors *ErrorsDocument
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("MTConnect agent reported failure: %d %s", e.Code, e.Reason)
	if e.Errors != nil {
		msg += ": " + e.Errors.summary()
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	if e.Errors == nil {
		return nil
	}
	return e.Errors
}

// AgentError is one Error element of an MTConnectError document.
type AgentError struct {
	Code    string
	Message string
}

// ErrorsDocument is returned when the agent answers a request with an
// MTConnectError document.
type ErrorsDocument struct {
	Errors []AgentError
	Doc    *etree.Document
}

func (e *ErrorsDocument) Error() string {
	return "MTConnect agent returned errors: " + e.summary()
}

func (e *ErrorsDocument) summary() string {
	parts := make([]string, 0, len(e.Errors))
	for _, ae := range e.Errors {
		if ae.Code != "" {
			parts = append(parts, ae.Code+": "+ae.Message)
		} else {
			parts = append(parts, ae.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// CheckErrors returns an *ErrorsDocument when doc is an MTConnectError
// document, and nil otherwise.
func CheckErrors(doc *etree.Document) error {
	if doc == nil {
		return nil
	}
	root := doc.Root()
	if root == nil || root.Tag != "MTConnectError" {
		return nil
	}
	ed := &ErrorsDocument{Doc: doc}
	for _, el := range root.FindElements(".//Error") {
		ed.Errors = append(ed.Errors, AgentError{
			Code:    el.SelectAttrValue("errorCode", ""),
			Message: strings.TrimSpace(el.Text()),
		})
	}
	// MTConnect 2.x nests typed errors, e.g. <InvalidRequest><ErrorMessage>.
	if len(ed.Errors) == 0 {
		if errs := root.FindElement("Errors"); errs != nil {
			for _, el := range errs.ChildElements() {
				msg := el.FindElement("ErrorMessage")
				ae := AgentError{Code: el.Tag}
				if msg != nil {
					ae.Message = strings.TrimSpace(msg.Text())
				}
				ed.Errors = append(ed.Errors, ae)
			}
		}
	}
	if len(ed.Errors) == 0 {
		ed.Errors = []AgentError{{Message: "unspecified error"}}
	}
	return ed
}
