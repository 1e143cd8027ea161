// Package response renders the service's JSON envelopes. Every response is
// either an OK or an Err, never a mix of both.
package response

import "github.com/labstack/echo/v4"

// OK is the success envelope.
type OK struct {
	Status  int    `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// Err is the error envelope. It never carries data.
type Err struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// Success writes an OK envelope with the given HTTP status.
func Success(c echo.Context, status int, data any, message string) error {
	if data == nil {
		data = struct{}{}
	}
	return c.JSON(status, OK{Status: status, Data: data, Message: message})
}

// Error writes an Err envelope with the given HTTP status.
func Error(c echo.Context, status int, kind, message string) error {
	return c.JSON(status, Err{Status: status, Message: message, Kind: kind})
}
