package capture

import (
	"context"
	"testing"
	"time"
)

func TestWithDefaults(t *testing.T) {
	o, err := CaptureOptions{URL: "http://127.0.0.1:8080/weekend", OutputPath: "share.png"}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeout || o.ReadySelector != DefaultReadySelector {
		t.Errorf("defaults not applied: %+v", o)
	}

	o, _ = CaptureOptions{URL: "u", OutputPath: "p", Width: 800, Height: 800, Timeout: time.Second, ReadySelector: "#card"}.withDefaults()
	if o.Width != 800 || o.Height != 800 || o.Timeout != time.Second || o.ReadySelector != "#card" {
		t.Errorf("explicit values overwritten: %+v", o)
	}
}

func TestCapturePagePNG_Validation(t *testing.T) {
	for _, o := range []CaptureOptions{
		{OutputPath: "share.png"},
		{URL: "http://127.0.0.1:8080/weekend"},
	} {
		if err := CapturePagePNG(context.Background(), o); err == nil {
			t.Errorf("CapturePagePNG(%+v) should fail before launching Chromium", o)
		}
	}
}
