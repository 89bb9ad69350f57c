//go:build js && wasm

package webgl

import (
	"fmt"
	"syscall/js"

	"github.com/taigrr/lumen/pkg/models"
)

// BlobURLs is a models.ObjectURLs backed by browser blob URLs.
type BlobURLs struct{}

var _ models.ObjectURLs = BlobURLs{}

func (BlobURLs) Create(data []byte, mimeType string) string {
	blob := js.Global().Get("Blob").New([]any{uint8Array(data)}, map[string]any{"type": mimeType})
	return js.Global().Get("URL").Call("createObjectURL", blob).String()
}

// Fetch reads the blob behind url. It blocks until the browser answers, so it
// must not be called from a JS callback.
func (BlobURLs) Fetch(url string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)

	var onData, onErr js.Func
	onData = js.FuncOf(func(_ js.Value, args []js.Value) any {
		arr := js.Global().Get("Uint8Array").New(args[0])
		data := make([]byte, arr.Get("length").Int())
		js.CopyBytesToGo(data, arr)
		done <- result{data: data}
		return nil
	})
	onErr = js.FuncOf(func(_ js.Value, args []js.Value) any {
		done <- result{err: fmt.Errorf("fetch %s: %s", url, args[0].Call("toString").String())}
		return nil
	})
	defer onData.Release()
	defer onErr.Release()

	then := js.FuncOf(func(_ js.Value, args []js.Value) any {
		return args[0].Call("arrayBuffer")
	})
	defer then.Release()

	js.Global().Call("fetch", url).Call("then", then).Call("then", onData).Call("catch", onErr)
	r := <-done
	return r.data, r.err
}

func (BlobURLs) Revoke(url string) {
	js.Global().Get("URL").Call("revokeObjectURL", url)
}
