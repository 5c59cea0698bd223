package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// ErrNotImage は取得先のContent-Typeが画像でない場合に返される。
var ErrNotImage = errors.New("URL does not point to an image")

// MediaProber は画像URLが実際に画像を返すかを確認する。
type MediaProber interface {
	Probe(ctx context.Context, rawURL string) error
}

type mediaProber struct {
	guard  SSRFGuardService
	client *http.Client
}

// NewMediaProber はSSRFガード付きクライアントで画像URLを確認するMediaProberを生成する。
func NewMediaProber(guard SSRFGuardService, timeout time.Duration) *mediaProber {
	return &mediaProber{guard: guard, client: guard.NewSafeClient(timeout)}
}

// Probe はURLを静的検証した後HEADリクエストを送り、
// 2xxかつContent-Typeがimage/*であることを確認する。
func (p *mediaProber) Probe(ctx context.Context, rawURL string) error {
	if err := p.guard.ValidateURL(rawURL); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	req.Header.Set("User-Agent", "tweetstream-media-probe/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to probe media URL: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("media URL returned status %d", resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return ErrNotImage
	}
	return nil
}
