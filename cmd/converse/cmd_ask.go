package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/spf13/cobra"

	"github.com/user/converse/internal/config"
	"github.com/user/converse/pkg/chat"
	"github.com/user/converse/pkg/chat/bedrockhttp"
	"github.com/user/converse/pkg/chat/client"
)

var (
	askStream     bool
	askModel      string
	askSystem     string
	askHTMLFile   string
	askSchemaFile string
)

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askStream, "stream", false, "stream the response as it arrives")
	askCmd.Flags().StringVar(&askModel, "model", "", "model id (overrides config)")
	askCmd.Flags().StringVar(&askSystem, "system", "", "system prompt")
	askCmd.Flags().StringVar(&askHTMLFile, "html-file", "", "HTML document to attach as markdown context")
	askCmd.Flags().StringVar(&askSchemaFile, "schema", "", "JSON Schema file; response is decoded as structured output")
}

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send a prompt to the configured model",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	c, err := buildClient(cfg)
	if err != nil {
		return err
	}

	messages, err := buildMessages(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if askSchemaFile != "" {
		schemaJSON, err := os.ReadFile(askSchemaFile)
		if err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
		schema := chat.ToolSpec{Name: "Output", Description: "Structured response", InputSchema: schemaJSON}
		var out map[string]any
		if _, err := c.InvokeStructured(ctx, messages, schema, &out); err != nil {
			return err
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}

	if askStream {
		stream, err := c.Stream(ctx, messages)
		if err != nil {
			return err
		}
		defer stream.Close()
		for chunk := range stream.Chunks() {
			fmt.Fprint(os.Stdout, chunk.Text)
		}
		fmt.Fprintln(os.Stdout)
		_, err = stream.Final()
		return err
	}

	resp, err := c.Invoke(ctx, messages)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, resp.Message.Text())
	return nil
}

func buildClient(cfg *config.Config) (*client.Client, error) {
	modelID := cfg.Model
	if askModel != "" {
		modelID = askModel
	}

	transport := bedrockhttp.New(bedrockhttp.Config{
		BaseURL: cfg.Endpoint.BaseURL,
		APIKey:  cfg.Endpoint.APIKey,
		Timeout: time.Duration(cfg.Endpoint.TimeoutSeconds) * time.Second,
	})

	inf := chat.InferenceConfig{MaxTokens: cfg.Inference.MaxTokens}
	if cfg.Inference.Temperature != 0 {
		t := cfg.Inference.Temperature
		inf.Temperature = &t
	}
	if cfg.Inference.TopP != 0 {
		p := cfg.Inference.TopP
		inf.TopP = &p
	}

	return client.New(modelID, transport,
		client.WithInference(inf),
		client.WithMaxConcurrent(cfg.MaxConcurrent),
	)
}

// buildMessages assembles the conversation: optional system prompt, optional
// HTML attachment converted to markdown, then the user prompt.
func buildMessages(prompt string) ([]chat.Message, error) {
	var messages []chat.Message
	if askSystem != "" {
		messages = append(messages, chat.SystemMessage(askSystem))
	}
	if askHTMLFile != "" {
		html, err := os.ReadFile(askHTMLFile)
		if err != nil {
			return nil, fmt.Errorf("read html file: %w", err)
		}
		markdown, err := htmltomarkdown.ConvertString(string(html))
		if err != nil {
			return nil, fmt.Errorf("convert html: %w", err)
		}
		messages = append(messages, chat.UserMessage("Context document:\n\n"+markdown))
	}
	messages = append(messages, chat.UserMessage(prompt))
	return messages, nil
}
