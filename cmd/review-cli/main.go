package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mikey/content-review/internal/core"
	"github.com/mikey/content-review/internal/di"
	"github.com/mikey/content-review/internal/utils"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Error: %v\n", dig.RootCause(err))
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	service *core.ReviewService,
	textProcessor *utils.TextProcessor,
) error {
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		kind    core.SubjectKind
		size    int
		verdict *core.Verdict
		err     error
	)
	start := time.Now()

	if flags.ImageFile != "" {
		image, readErr := os.ReadFile(flags.ImageFile)
		if readErr != nil {
			return fmt.Errorf("failed to read image: %w", readErr)
		}
		kind, size = core.SubjectImage, len(image)
		logger.Info("Reviewing image", zap.String("file", flags.ImageFile), zap.Int("bytes", size))
		verdict, err = service.ReviewImage(ctx, image)
	} else {
		text, readErr := readText(flags, logger)
		if readErr != nil {
			return readErr
		}
		text = textProcessor.ProcessText(text, flags.MaxBodySize)
		kind, size = core.SubjectText, len(text)
		verdict, err = service.ReviewText(ctx, text)
	}
	if err != nil {
		return err
	}

	if flags.JSONOutput {
		return json.NewEncoder(os.Stdout).Encode(verdict)
	}

	fmt.Printf("\n=== Review ===\n")
	fmt.Printf("Kind: %s\n", kind)
	fmt.Printf("Size: %d bytes\n", size)
	fmt.Printf("\n=== Verdict ===\n")
	fmt.Printf("Status: %s\n", verdict.Status)
	if verdict.Reason != "" {
		fmt.Printf("Reason: %s\n", verdict.Reason)
	}
	fmt.Printf("Processing time: %v\n", time.Since(start))
	return nil
}

func readText(flags *di.CLIFlags, logger *zap.Logger) (string, error) {
	if flags.Text != "" {
		return flags.Text, nil
	}

	var r io.Reader = os.Stdin
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return "", fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		r = file
		logger.Info("Reading text from file", zap.String("file", flags.InputFile))
	} else {
		logger.Info("Reading text from stdin")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}
