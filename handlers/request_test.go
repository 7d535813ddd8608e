package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadApp() *fiber.App {
	app := fiber.New(fiber.Config{BodyLimit: 2 * MaxUploadBytes})
	app.Post("/upload", func(c *fiber.Ctx) error {
		payload, err := ReadUpload(c, "file")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"filename": payload.Filename, "size": len(payload.Data)})
	})
	return app
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestReadUpload_ReadsWholeFile(t *testing.T) {
	body, contentType := multipartBody(t, "cv.txt", []byte("curriculum vitae"))
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := uploadApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Filename string `json:"filename"`
		Size     int    `json:"size"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "cv.txt", out.Filename)
	assert.Equal(t, len("curriculum vitae"), out.Size)
}

func TestReadUpload_RejectsOversizedFile(t *testing.T) {
	body, contentType := multipartBody(t, "scan.pdf", bytes.Repeat([]byte("a"), MaxUploadBytes+1024))
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := uploadApp().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var out struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, ErrUploadTooLarge.Error(), out.Error)
}

func TestReadUpload_MissingField(t *testing.T) {
	req := httptest.NewRequest("POST", "/upload", nil)

	resp, err := uploadApp().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
