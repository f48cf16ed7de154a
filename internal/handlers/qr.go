package handlers

import (
	"bytes"
	"io"
	"net/http"
	"regexp"

	qrcode "github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// TestQRCode renders a PNG QR code pointing at the test's public split URL,
// for print and offline campaign material.
func (h *AdminHandler) TestQRCode(w http.ResponseWriter, r *http.Request) {
	test, ok := h.lookupTest(w, r)
	if !ok {
		return
	}

	splitURL := h.Cfg.BaseURL + "/split/" + test.Slug

	shape := r.URL.Query().Get("shape") // square|circle
	fg := r.URL.Query().Get("fg")       // hex color
	dl := r.URL.Query().Get("dl")       // 0|1

	opts := []standard.ImageOption{
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithQRWidth(10),
		standard.WithBorderWidth(20),
		standard.WithBgTransparent(),
	}
	if shape == "circle" {
		opts = append(opts, standard.WithCircleShape())
	}
	if hexColorRe.MatchString(fg) {
		opts = append(opts, standard.WithFgColorRGBHex(fg))
	}

	qrc, err := qrcode.New(splitURL)
	if err != nil {
		jsonError(w, "failed to generate qr code", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	writer := standard.NewWithWriter(nopCloser{&buf}, opts...)
	if err := qrc.Save(writer); err != nil {
		jsonError(w, "failed to render qr code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if dl == "1" {
		w.Header().Set("Content-Disposition", "attachment; filename=\""+test.Slug+"-qr.png\"")
	}
	w.Write(buf.Bytes())
}
