package browser

import (
	"context"
	"errors"
)

var ErrDisabled = errors.New("headless browser is disabled")

type RenderOptions struct {
	// WaitSelector, when set, is awaited after navigation.
	WaitSelector string
	// Cookies are attached to the browser context before navigation.
	Cookies []Cookie
}

type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

//go:generate go run go.uber.org/mock/mockgen -source=browser.go -destination=mocks/mock.go
type Backend interface {
	// Render loads url in a fresh page and returns the resulting HTML.
	Render(ctx context.Context, url string, opts RenderOptions) (string, error)
}

// Disabled is used when no browser is configured.
type Disabled struct{}

func (Disabled) Render(context.Context, string, RenderOptions) (string, error) {
	return "", ErrDisabled
}
