// Package encoding carries report payloads over HTTP as CBOR.
package encoding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/fxamacker/cbor/v2"
)

const ContentType = "application/cbor"

// MarshalCBOR encodes data to CBOR format
func MarshalCBOR(v interface{}) ([]byte, error) {
	return cbor.Marshal(v)
}

// UnmarshalCBOR decodes CBOR data
func UnmarshalCBOR(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

// SendCBORRequest POSTs data encoded as CBOR. The request is bound to ctx.
func SendCBORRequest(ctx context.Context, client *http.Client, url string, data interface{}, headers map[string]string) (*http.Response, error) {
	body, err := MarshalCBOR(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ContentType)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return client.Do(req)
}

// ReadCBORResponse reads and decodes a CBOR body, closing it
func ReadCBORResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return UnmarshalCBOR(body, v)
}
