package pharmacy

import "github.com/gofiber/fiber/v2"

// Envelope is the response shape for every pharmacy endpoint: success:true
// carries data, success:false carries error (and an optional message), never
// both. Domain-level failures keep HTTP 200; the envelope is the contract.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respondOK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(Envelope{Success: true, Data: data})
}

func respondErr(c *fiber.Ctx, errText, message string) error {
	return c.JSON(Envelope{Success: false, Error: errText, Message: message})
}
