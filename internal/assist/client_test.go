package assist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"resale-ledger-go/internal/models"
)

// setupTestServer creates a new test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	c := &Client{
		client:  resty.New().SetBaseURL(server.URL),
		apiKey:  "test_api_key",
		logger:  zap.NewNop(), // Use a no-op logger for tests
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return c, server
}

func TestExtractItems(t *testing.T) {
	t.Run("Success with fenced response", func(t *testing.T) {
		// Gateways wrap model output; the client must undress it.
		mockResponse := "Sure! Here are the items:\n```json\n[{\"name\":\"iPhone 13\",\"price\":3600,\"date\":\"2025-03-01\"}]\n```"

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/extract/items", r.URL.Path)
			assert.Equal(t, "Bearer test_api_key", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(mockResponse))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		items, err := c.ExtractItems(context.Background(), []string{"img1"}, LegSell)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "iPhone 13", items[0].Name)
		assert.Equal(t, 3600.0, items[0].Price)
	})

	t.Run("MalformedResponse", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("I could not read those screenshots, sorry."))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.ExtractItems(context.Background(), []string{"img1"}, LegBuy)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "malformed gateway response")
	})

	t.Run("APIError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"no images supplied"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.ExtractItems(context.Background(), nil, LegBuy)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to extract items")
	})
}

func TestExtractFields(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract/fields", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"Switch OLED","category":"数码","buyPrice":1500}`))
	})

	c, server := setupTestServer(handler)
	defer server.Close()

	guess, err := c.ExtractFields(context.Background(), "收了台switch oled 1500块")
	require.NoError(t, err)
	assert.Equal(t, "Switch OLED", guess.Name)
	assert.Equal(t, "数码", guess.Category)
	assert.Equal(t, 1500.0, guess.BuyPrice)
}

func TestCategorizeNames(t *testing.T) {
	t.Run("DropsTagsOutsideVocabulary", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/categorize", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"iPhone 13":"主机设备","Nike Dunk":"random nonsense"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		tags, err := c.CategorizeNames(context.Background(), []string{"iPhone 13", "Nike Dunk"})
		require.NoError(t, err)
		assert.Equal(t, models.TagConsoles, tags["iPhone 13"])
		_, ok := tags["Nike Dunk"]
		assert.False(t, ok, "answers outside the vocabulary are dropped, not stored")
	})
}

func TestNarrativeReport(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/report", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Your camera flips outperform everything else this quarter."))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		report, err := c.NarrativeReport(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Contains(t, report, "camera flips")
	})

	t.Run("EmptyResponse", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.NarrativeReport(context.Background(), nil, nil)
		assert.Error(t, err)
	})
}

func TestStripFences(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		expected string
	}{
		{name: "bare text passes through", in: `[{"a":1}]`, expected: `[{"a":1}]`},
		{name: "json fence", in: "```json\n[1,2]\n```", expected: "[1,2]"},
		{name: "plain fence", in: "```\n{\"a\":1}\n```", expected: `{"a":1}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stripFences(tc.in))
		})
	}
}

func TestDecodePayload(t *testing.T) {
	t.Run("bare object with brackets in a value survives", func(t *testing.T) {
		// Item names carry whatever sellers type, brackets included; a valid
		// object response must never be cut down to a bracketed fragment.
		var guess FieldGuess
		err := decodePayload([]byte(`{"name":"Canon AE-1 [boxed]","category":"摄影","buyPrice":900}`), &guess)
		require.NoError(t, err)
		assert.Equal(t, "Canon AE-1 [boxed]", guess.Name)
		assert.Equal(t, 900.0, guess.BuyPrice)
	})

	t.Run("fenced object with brackets in a value", func(t *testing.T) {
		var tags map[string]string
		err := decodePayload([]byte("```json\n{\"LEGO [75192]\":\"卡牌潮玩\"}\n```"), &tags)
		require.NoError(t, err)
		assert.Equal(t, "卡牌潮玩", tags["LEGO [75192]"])
	})

	t.Run("prose around array", func(t *testing.T) {
		var out []int
		require.NoError(t, decodePayload([]byte("here you go: [1,2] enjoy"), &out))
		assert.Equal(t, []int{1, 2}, out)
	})

	t.Run("prose around object with bracketed value", func(t *testing.T) {
		// The array-span guess fails here; the object span must still win.
		var guess FieldGuess
		err := decodePayload([]byte(`result: {"name":"Switch [OLED]","buyPrice":1500} done`), &guess)
		require.NoError(t, err)
		assert.Equal(t, "Switch [OLED]", guess.Name)
	})

	t.Run("no json at all", func(t *testing.T) {
		var out []int
		err := decodePayload([]byte("nothing here"), &out)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "malformed gateway response")
	})
}

func TestWrapCandidates(t *testing.T) {
	items := []ItemCandidate{
		{Name: "iPhone 13", Price: 3600, Date: "2025-03-01"},
		{Name: "Broken", Price: -5, Date: "not a date"},
	}

	t.Run("SELL leg", func(t *testing.T) {
		records := WrapCandidates(items, LegSell)
		require.Len(t, records, 2)

		r := records[0]
		assert.Zero(t, r.BuyPrice, "opposite leg is forced to zero")
		assert.Equal(t, 3600.0, r.SellPrice)
		assert.True(t, r.IsSold)
		assert.Equal(t, "2025-03-01", r.SellDate)
		assert.Equal(t, models.DefaultShippingMethod, r.ShippingMethod)
		assert.Equal(t, models.ShippingCostFor(models.DefaultShippingMethod), r.ShippingCost)

		broken := records[1]
		assert.Zero(t, broken.SellPrice, "negative prices clamp")
		assert.NotEmpty(t, broken.Date, "unparseable dates default to today")
	})

	t.Run("BUY leg", func(t *testing.T) {
		records := WrapCandidates(items, LegBuy)
		r := records[0]
		assert.Equal(t, 3600.0, r.BuyPrice)
		assert.Zero(t, r.SellPrice)
		assert.False(t, r.IsSold)
		assert.Empty(t, r.ShippingMethod, "shipping only applies to the sale leg")
	})
}
