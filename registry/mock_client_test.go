package registry_test

import (
	"context"
)

// fakeClient is a minimal domain.Client for registry tests.
type fakeClient struct {
	id string
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(context.Context, []byte) error { return nil }

func (c *fakeClient) Close() error { return nil }
