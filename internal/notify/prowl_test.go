package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alerttrader/internal/config"
)

func TestProwlSend(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"apikey":      r.PostFormValue("apikey"),
			"application": r.PostFormValue("application"),
			"description": r.PostFormValue("description"),
			"priority":    r.PostFormValue("priority"),
		}
	}))
	defer srv.Close()

	p := NewProwl(config.Notify{Endpoint: srv.URL, APIKey: "key-1", AppName: "alerttrader"})
	require.NoError(t, p.Send(context.Background(), "cannot classify SPX", 2))

	assert.Equal(t, "key-1", form["apikey"])
	assert.Equal(t, "alerttrader", form["application"])
	assert.Equal(t, "cannot classify SPX", form["description"])
	assert.Equal(t, "2", form["priority"])
}

func TestProwlSendGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewProwl(config.Notify{Endpoint: srv.URL})
	assert.Error(t, p.Send(context.Background(), "msg", 0))
}
