package controllers

import "github.com/gofiber/fiber/v2"

// HandleHealth is the liveness endpoint
func HandleHealth(c *fiber.Ctx) error {
	return c.SendString("IntelliResume Backend is running!")
}
