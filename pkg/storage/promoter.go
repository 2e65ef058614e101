package storage

import (
	"context"
	"log"
	"path"
	"strings"
	"sync"
	"time"
)

// Promoter executa a segunda fase da escrita em duas fases: o registro
// durável já saiu com o preview inline e está visível; aqui o asset sobe em
// background e o dono do registro é avisado do resultado. Falha de upload
// nunca desfaz a primeira fase.
type Promoter struct {
	blobs   BlobStore
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewPromoter(blobs BlobStore) *Promoter {
	return &Promoter{blobs: blobs, timeout: 30 * time.Second}
}

// Promote uploads the data URL in the background and calls done with the
// permanent URL, or with uploadErr set when the asset did not make it.
// done runs in its own goroutine; the caller owns the record update.
func (p *Promoter) Promote(objectDir, objectID, dataURL string, done func(permanentURL string, uploadErr error)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		data, contentType, err := DecodeDataURL(dataURL)
		if err != nil {
			log.Printf("[STORAGE] Preview de %s ilegível: %v", objectID, err)
			done("", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		objectName := path.Join(objectDir, objectID+extFor(contentType))
		url, err := p.blobs.Put(ctx, objectName, data, contentType)
		if err != nil {
			log.Printf("[STORAGE] Upload de %s falhou: %v", objectName, err)
			done("", err)
			return
		}
		done(url, nil)
	}()
}

// WaitUploads drains pending uploads. Used at shutdown and in tests.
func (p *Promoter) WaitUploads() {
	p.wg.Wait()
}

func extFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	case strings.Contains(contentType, "pdf"):
		return ".pdf"
	default:
		return ""
	}
}
