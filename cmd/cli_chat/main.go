package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"devchat/internal/config"
	"devchat/internal/llm"
	"devchat/internal/service"
)

// Chat interactivo por terminal contra la API de chat completions, con el
// mismo prompt de sistema y formato de salida que usa el servidor.
func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)

	history := []llm.Message{
		{Role: "system", Content: llm.SystemPrompt},
	}

	fmt.Println("devchat cli. Escribí tu mensaje; 'exit' para salir.")

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		history = append(history, llm.Message{Role: "user", Content: line})

		reply, err := llmClient.Chat(ctx, history)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			// El turno fallido no queda en el historial.
			history = history[:len(history)-1]
			continue
		}

		history = append(history, llm.Message{Role: "assistant", Content: reply})
		fmt.Println(service.FormatModelOutput(reply))
	}
}
