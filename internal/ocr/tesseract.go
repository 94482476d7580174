package ocr

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// TesseractConfig holds recognition settings for the Tesseract engine.
type TesseractConfig struct {
	Languages      []string
	TessdataPrefix string
	// TokenPSM is the page segmentation mode for the positioned token pass.
	TokenPSM int
	// TextPSM is the page segmentation mode for the plain-text pass.
	TextPSM int
	// PhraseGap is the word-gap factor used by GroupPhrases. Zero keeps words.
	PhraseGap float64
	// MaxConcurrent caps recognitions in flight, including ones whose caller
	// already gave up. Zero means one per CPU.
	MaxConcurrent int
}

// DefaultTesseractConfig returns Norwegian + English with sparse-text tokens
// and a single uniform block for plain text.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Languages: []string{"nor", "eng"},
		TokenPSM:  int(gosseract.PSM_SPARSE_TEXT),
		TextPSM:   int(gosseract.PSM_SINGLE_BLOCK),
		PhraseGap: 1.0,
	}
}

// TesseractEngine implements Engine with gosseract. Each call uses its own
// client because a gosseract client is not safe for concurrent use.
type TesseractEngine struct {
	config        TesseractConfig
	clientFactory func() *gosseract.Client
	slots         chan struct{}
	logger        *zap.Logger
}

// NewTesseractEngine constructs the engine and runs a probe recognition so a
// missing binary or language model fails here rather than on the first image.
func NewTesseractEngine(cfg TesseractConfig, logger *zap.Logger) (*TesseractEngine, error) {
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultTesseractConfig().Languages
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.NumCPU()
	}
	e := &TesseractEngine{
		config:        cfg,
		clientFactory: gosseract.NewClient,
		slots:         make(chan struct{}, cfg.MaxConcurrent),
		logger:        logger,
	}

	c, err := e.newClient(cfg.TextPSM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tesseract: %w", err)
	}
	defer c.Close()
	if err := c.SetImageFromBytes(blankPNG()); err != nil {
		return nil, fmt.Errorf("failed to initialize tesseract: %w", err)
	}
	if _, err := c.Text(); err != nil {
		return nil, fmt.Errorf("failed to initialize tesseract (languages %s): %w",
			strings.Join(cfg.Languages, "+"), err)
	}

	logger.Info("Tesseract engine initialized",
		zap.String("version", c.Version()),
		zap.Strings("languages", cfg.Languages),
		zap.Int("token_psm", cfg.TokenPSM),
		zap.Int("text_psm", cfg.TextPSM))

	return e, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Tokens recognizes word boxes and groups them into phrase tokens.
func (e *TesseractEngine) Tokens(ctx context.Context, img *Image) ([]Token, error) {
	var words []Token
	err := e.run(ctx, e.config.TokenPSM, img, func(c *gosseract.Client) error {
		boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
		if err != nil {
			return fmt.Errorf("failed to get bounding boxes: %w", err)
		}
		words = make([]Token, 0, len(boxes))
		for _, b := range boxes {
			text := strings.TrimSpace(b.Word)
			if text == "" {
				continue
			}
			words = append(words, Token{
				Box:        QuadFromRect(b.Box),
				Text:       text,
				Confidence: b.Confidence / 100.0,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tokens := GroupPhrases(words, e.config.PhraseGap)
	e.logger.Debug("Token pass complete",
		zap.String("path", img.Path),
		zap.Int("words", len(words)),
		zap.Int("tokens", len(tokens)))
	return tokens, nil
}

// Text returns the plain-text transcription of the page.
func (e *TesseractEngine) Text(ctx context.Context, img *Image) (string, error) {
	var text string
	err := e.run(ctx, e.config.TextPSM, img, func(c *gosseract.Client) error {
		t, err := c.Text()
		if err != nil {
			return fmt.Errorf("tesseract OCR failed: %w", err)
		}
		text = t
		return nil
	})
	return text, err
}

// Close is a no-op; clients are released after every call.
func (e *TesseractEngine) Close() error { return nil }

// run executes fn on a fresh client. The goroutine owns and closes the client.
func (e *TesseractEngine) run(ctx context.Context, psm int, img *Image, fn func(*gosseract.Client) error) error {
	return e.guard(ctx, func() error {
		c, err := e.newClient(psm)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.SetImageFromBytes(img.Data); err != nil {
			return fmt.Errorf("%w: failed to set image: %v", ErrImageUnreadable, err)
		}
		return fn(c)
	})
}

// guard runs work in its own goroutine holding one of the engine slots, so a
// cancelled context returns immediately. The slot is released only when work
// finishes, which keeps abandoned recognitions counted against MaxConcurrent.
func (e *TesseractEngine) guard(ctx context.Context, work func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case e.slots <- struct{}{}:
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-e.slots }()
		done <- work()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (e *TesseractEngine) newClient(psm int) (*gosseract.Client, error) {
	c := e.clientFactory()
	if e.config.TessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.config.TessdataPrefix); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(e.config.Languages...); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	return c, nil
}

var _ Engine = (*TesseractEngine)(nil)
