package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/adapters/llm"
	"github.com/wayfindr/kiosk/adapters/settings"
	"github.com/wayfindr/kiosk/domain/entities"
	"github.com/wayfindr/kiosk/usecase"
)

// chatcli is a terminal chat client for exercising a responder endpoint
// without kiosk hardware.
func main() {
	serverURL := flag.String("server", settings.DefaultServerURL, "responder base URL")
	contextDepth := flag.Int("context", usecase.DefaultContextDepth, "prior messages sent as context")
	flag.Parse()

	logger := zap.NewNop()
	client := llm.NewChatClient(*serverURL, logger)

	prompt := color.New(color.FgCyan, color.Bold)
	assistant := color.New(color.FgGreen)
	errText := color.New(color.FgRed)

	fmt.Printf("Connected to %s. Type a message, or /quit to exit.\n", *serverURL)

	var history []entities.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			break
		}

		window := history
		if len(window) > *contextDepth {
			window = window[len(window)-*contextDepth:]
		}

		response, err := client.Send(context.Background(), text, window)
		if err != nil {
			errText.Printf("error: %v\n", err)
			continue
		}

		assistant.Printf("assistant> %s\n", response)
		history = append(history,
			entities.NewMessage(text, entities.OriginatorUser),
			entities.NewMessage(response, entities.OriginatorAssistant))
	}
}
