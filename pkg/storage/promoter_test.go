package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
)

type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBlobStore) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.objects[objectName] = data
	f.types[objectName] = contentType
	return "https://blobs.test/" + objectName, nil
}

func pngDataURL(payload string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestDecodeDataURL(t *testing.T) {
	data, contentType, err := DecodeDataURL(pngDataURL("abc"))
	if err != nil {
		t.Fatalf("esperava decodificar, veio erro: %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("payload errado: %q", data)
	}
	if contentType != "image/png" {
		t.Fatalf("content-type errado: %q", contentType)
	}

	for _, bad := range []string{"https://x/y.png", "data:image/png,abc", "data:;base64,@@@"} {
		if _, _, err := DecodeDataURL(bad); err == nil {
			t.Fatalf("esperava erro para %q", bad)
		}
	}
}

func TestIsDataURL(t *testing.T) {
	if !IsDataURL("data:image/png;base64,x") {
		t.Fatal("data-URL não reconhecido")
	}
	if IsDataURL("https://blobs.test/a.png") {
		t.Fatal("URL http tratada como inline")
	}
}

func TestPromoteUploadsAndReports(t *testing.T) {
	blobs := newFakeBlobStore()
	p := NewPromoter(blobs)

	var gotURL string
	var gotErr error
	p.Promote("chat_images", "msg-1", pngDataURL("conteudo"), func(url string, err error) {
		gotURL, gotErr = url, err
	})
	p.WaitUploads()

	if gotErr != nil {
		t.Fatalf("upload devia ter sucedido: %v", gotErr)
	}
	if gotURL != "https://blobs.test/chat_images/msg-1.png" {
		t.Fatalf("URL permanente errada: %q", gotURL)
	}
	if string(blobs.objects["chat_images/msg-1.png"]) != "conteudo" {
		t.Fatal("bytes não chegaram no blob store")
	}
	if blobs.types["chat_images/msg-1.png"] != "image/png" {
		t.Fatalf("content-type errado: %q", blobs.types["chat_images/msg-1.png"])
	}
}

func TestPromoteReportsUploadFailure(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.err = errors.New("conexão recusada")
	p := NewPromoter(blobs)

	var gotErr error
	p.Promote("chat_images", "msg-2", pngDataURL("x"), func(url string, err error) {
		gotErr = err
	})
	p.WaitUploads()

	if gotErr == nil {
		t.Fatal("falha de upload devia chegar no callback")
	}
}

func TestPromoteRejectsBadPreview(t *testing.T) {
	blobs := newFakeBlobStore()
	p := NewPromoter(blobs)

	var gotErr error
	p.Promote("chat_images", "msg-3", "nao-e-data-url", func(url string, err error) {
		gotErr = err
	})
	p.WaitUploads()

	if gotErr == nil {
		t.Fatal("preview ilegível devia chegar como erro")
	}
	if len(blobs.objects) != 0 {
		t.Fatal("nada devia ter subido")
	}
}
