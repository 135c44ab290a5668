package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"z-writer-api/internal/application/story/continuation"
	"z-writer-api/internal/application/story/generation"
	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/wire"
)

var (
	genChapter     string
	genImages      []string
	genProvider    string
	genModel       string
	genTemperature float32
	genMaxTokens   int
)

var generateCmd = &cobra.Command{
	Use:   "generate <project-id> <input>",
	Short: "Stream a generation to stdout",
	Long: `Stream a generation to stdout as fragments arrive.

Pass --chapter to append the response to a chapter. Ctrl-C cancels the
stream; the user turn stays recorded and nothing else is written.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		images, err := readImages(genImages)
		if err != nil {
			return err
		}
		return runStream(cmd, func(ctx context.Context, svc *wire.Services) (*generation.Stream, error) {
			req := generation.Request{
				ProjectID: args[0],
				ChapterID: genChapter,
				UserInput: args[1],
				Images:    images,
				Provider:  genProvider,
				Model:     genModel,
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &genTemperature
			}
			if genMaxTokens > 0 {
				req.MaxTokens = &genMaxTokens
			}
			return svc.Pipeline.StreamGenerate(ctx, req)
		})
	},
}

var continueCmd = &cobra.Command{
	Use:   "continue <project-id> <chapter-id>",
	Short: "Continue a chapter and append the result",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStream(cmd, func(ctx context.Context, svc *wire.Services) (*generation.Stream, error) {
			req := continuation.Request{
				ProjectID: args[0],
				ChapterID: args[1],
				Provider:  genProvider,
				Model:     genModel,
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &genTemperature
			}
			if genMaxTokens > 0 {
				req.MaxTokens = &genMaxTokens
			}
			return svc.Continuation.Continue(ctx, req)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, continueCmd} {
		c.Flags().StringVar(&genProvider, "provider", "", "provider name from llm.providers")
		c.Flags().StringVar(&genModel, "model", "", "model override")
		c.Flags().Float32Var(&genTemperature, "temperature", 0, "sampling temperature")
		c.Flags().IntVar(&genMaxTokens, "max-tokens", 0, "response token cap")
	}
	generateCmd.Flags().StringVar(&genChapter, "chapter", "", "chapter to append the response to")
	generateCmd.Flags().StringSliceVar(&genImages, "image", nil, "image file to attach (repeatable)")
}

type startFunc func(ctx context.Context, svc *wire.Services) (*generation.Stream, error)

// runStream 打印片段直到结束，SIGINT 取消流
func runStream(cmd *cobra.Command, start startFunc) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withServices(ctx, func(svc *wire.Services) error {
		stream, err := start(ctx, svc)
		if err != nil {
			return err
		}
		defer stream.Close()

		out := cmd.OutOrStdout()
		for {
			fragment, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_, n := stream.Partial()
				fmt.Fprintln(out)
				return fmt.Errorf("stream failed after %d fragments: %w", n, err)
			}
			fmt.Fprint(out, fragment)
		}
		fmt.Fprintln(out)

		result := stream.Result()
		if result == nil {
			_, n := stream.Partial()
			fmt.Fprintf(cmd.ErrOrStderr(), "canceled after %d fragments\n", n)
			return nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "assistant turn %s (%d fragments)\n", result.AssistantTurnID, result.Fragments)
		return nil
	})
}

func readImages(paths []string) ([]entity.TurnImage, error) {
	images := make([]entity.TurnImage, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		mime := http.DetectContentType(data)
		if i := strings.Index(mime, ";"); i >= 0 {
			mime = mime[:i]
		}
		images = append(images, entity.TurnImage{
			MIMEType: mime,
			Data:     base64.StdEncoding.EncodeToString(data),
		})
	}
	return images, nil
}
