package server_test

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/address"
	"github.com/allfeat/explorer/server"
	"github.com/allfeat/explorer/service"
	"github.com/allfeat/explorer/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type ServerTestSuite struct {
	suite.Suite
	Chain  *testutil.Chain
	Svc    *service.Service
	Server *server.Server
}

func (s *ServerTestSuite) SetupTest() {
	s.Chain = testutil.DemoChain()
	svc, err := service.New(s.Chain, service.Options{Prefix: xe.DefaultNetworkTag})
	s.Require().NoError(err)
	s.Svc = svc
	s.Server = server.New(svc, server.Options{})
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

type errorResponse struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *ServerTestSuite) get(path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Server.Handler().ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) decode(rec *httptest.ResponseRecorder, dst any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func (s *ServerTestSuite) requireError(rec *httptest.ResponseRecorder, code int, status string) {
	require := s.Require()
	require.Equal(code, rec.Code, rec.Body.String())
	var body errorResponse
	s.decode(rec, &body)
	require.Equal(status, body.Error.Status)
	require.NotEmpty(body.Error.Message)
}

func addressOf(key xe.AccountKey) string {
	return string(address.MustEncode(key, xe.DefaultNetworkTag))
}

func (s *ServerTestSuite) TestHealthz() {
	rec := s.get("/healthz")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *ServerTestSuite) TestSupplyRoutes() {
	require := s.Require()

	rec := s.get("/api/total-issuance")
	require.Equal(http.StatusOK, rec.Code)
	require.JSONEq(`{"total_issuance":"1000000000000000000000"}`, rec.Body.String())

	rec = s.get("/api/circulating-supply")
	require.Equal(http.StatusOK, rec.Code)
	require.JSONEq(`{"circulating_supply":"79500000000000000000"}`, rec.Body.String())

	rec = s.get("/api/supply")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("1", rec.Header().Get("X-Block-Number"))
	var supply struct {
		TotalDistributed string `json:"total_distributed"`
		Locked           string `json:"locked"`
		Circulating      string `json:"circulating"`
	}
	s.decode(rec, &supply)
	require.Equal("204000000000000000000", supply.TotalDistributed)
	require.Equal("124500000000000000000", supply.Locked)
	require.Equal("79500000000000000000", supply.Circulating)

	rec = s.get("/api/epoch-duration")
	require.Equal(http.StatusOK, rec.Code)
	require.JSONEq(`{"epoch_duration":14400}`, rec.Body.String())
}

func (s *ServerTestSuite) TestBalance() {
	require := s.Require()
	rec := s.get("/api/accounts/" + addressOf(testutil.DemoFounder) + "/balance")
	require.Equal(http.StatusOK, rec.Code)
	require.JSONEq(`{"free":"12500000000000000","reserved":"0","frozen":"10000000000000000"}`, rec.Body.String())

	// absent accounts are all zero
	rec = s.get("/api/accounts/" + addressOf(testutil.DemoNoAllocated) + "/balance")
	require.Equal(http.StatusOK, rec.Code)
	require.JSONEq(`{"free":"0","reserved":"0","frozen":"0"}`, rec.Body.String())
}

func (s *ServerTestSuite) TestTreasury() {
	require := s.Require()
	rec := s.get("/api/treasury")
	require.Equal(http.StatusOK, rec.Code)
	require.JSONEq(`{"address":"`+addressOf(testutil.DemoTreasury)+`","free":"50000000000000000000","reserved":"0","frozen":"0"}`, rec.Body.String())
}

func (s *ServerTestSuite) TestInvalidAddress() {
	for _, addr := range []string{
		"not-an-address",
		// valid checksum, other network
		string(address.MustEncode(testutil.DemoFounder, 42)),
	} {
		s.requireError(s.get("/api/accounts/"+addr+"/balance"), http.StatusBadRequest, "InvalidAddressFormat")
		s.requireError(s.get("/api/accounts/"+addr+"/allocations"), http.StatusBadRequest, "InvalidAddressFormat")
	}
}

func (s *ServerTestSuite) TestAllocationsCache() {
	require := s.Require()

	rec := s.get("/api/allocations")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("miss", rec.Header().Get("X-Cache"))
	require.NotEmpty(rec.Header().Get("X-Computed-At"))
	var envelopes struct {
		Envelopes []struct {
			ID          string `json:"id"`
			Distributed string `json:"distributed"`
		} `json:"envelopes"`
	}
	s.decode(rec, &envelopes)
	require.Len(envelopes.Envelopes, 5)
	require.Equal("airdrop", envelopes.Envelopes[0].ID)
	require.Equal("reserve", envelopes.Envelopes[4].ID)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(etag)

	rec = s.get("/api/allocations")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("hit", rec.Header().Get("X-Cache"))
	require.Equal(etag, rec.Header().Get("ETag"))

	rec = s.get("/api/allocations", "If-None-Match", etag)
	require.Equal(http.StatusNotModified, rec.Code)
	require.Empty(rec.Body.Bytes())
}

func (s *ServerTestSuite) TestEnvelope() {
	require := s.Require()

	rec := s.get("/api/envelopes/reserve")
	require.Equal(http.StatusOK, rec.Code)
	var envelope struct {
		ID                string `json:"id"`
		UniqueBeneficiary string `json:"unique_beneficiary"`
		Remaining         string `json:"remaining"`
	}
	s.decode(rec, &envelope)
	require.Equal("reserve", envelope.ID)
	require.Equal(addressOf(testutil.DemoTreasury), envelope.UniqueBeneficiary)
	require.Equal("150000000000000000000", envelope.Remaining)

	s.requireError(s.get("/api/envelopes/unknown"), http.StatusNotFound, "EnvelopeNotFound")
	// known but not configured on the ledger
	s.requireError(s.get("/api/envelopes/ico-1"), http.StatusNotFound, "EnvelopeNotFound")
}

func (s *ServerTestSuite) TestAccountAllocations() {
	require := s.Require()
	rec := s.get("/api/accounts/" + addressOf(testutil.DemoFounder) + "/allocations")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("1", rec.Header().Get("X-Block-Number"))

	var body struct {
		Address       string `json:"address"`
		EpochDuration uint32 `json:"epoch_duration"`
		Allocations   []struct {
			Total    string  `json:"total"`
			Locked   string  `json:"locked"`
			Progress float64 `json:"progress"`
		} `json:"allocations"`
	}
	s.decode(rec, &body)
	require.Equal(addressOf(testutil.DemoFounder), body.Address)
	require.EqualValues(14_400, body.EpochDuration)
	require.Len(body.Allocations, 1)
	require.Equal("100000000000000000000", body.Allocations[0].Total)
	require.Equal("87500000000000000000", body.Allocations[0].Locked)
	require.InDelta(0.125, body.Allocations[0].Progress, 1e-9)

	rec = s.get("/api/accounts/" + addressOf(testutil.DemoNoAllocated) + "/allocations")
	require.Equal(http.StatusOK, rec.Code)
	s.decode(rec, &body)
	require.Empty(body.Allocations)
}

func (s *ServerTestSuite) TestChainUnavailable() {
	s.Chain.SetUnavailable(fmt.Errorf("node down"))
	s.requireError(s.get("/api/total-issuance"), http.StatusBadGateway, "ChainUnavailable")
	s.requireError(s.get("/api/allocations"), http.StatusBadGateway, "ChainUnavailable")
	s.requireError(s.get("/api/sse/blocks"), http.StatusBadGateway, "ChainUnavailable")
}

func (s *ServerTestSuite) TestMetricNotFound() {
	svc, err := service.New(testutil.NewChain(), service.Options{Prefix: xe.DefaultNetworkTag})
	s.Require().NoError(err)
	s.Server = server.New(svc, server.Options{})
	s.requireError(s.get("/api/total-issuance"), http.StatusNotFound, "MetricNotFound")
}

func (s *ServerTestSuite) TestIdenticon() {
	require := s.Require()
	rec := s.get("/api/identicon/" + addressOf(testutil.DemoFounder) + ".svg?size=128")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("image/svg+xml", rec.Header().Get("Content-Type"))
	require.True(strings.HasPrefix(rec.Body.String(), "<svg"))
	require.Contains(rec.Body.String(), `width="128"`)

	// any network is accepted
	rec = s.get("/api/identicon/" + string(address.MustEncode(testutil.DemoFounder, 0)) + ".svg")
	require.Equal(http.StatusOK, rec.Code)

	s.requireError(s.get("/api/identicon/garbage.svg"), http.StatusBadRequest, "InvalidAddressFormat")
	rec = s.get("/api/identicon/" + addressOf(testutil.DemoFounder) + ".svg?size=big")
	require.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestRateLimit() {
	require := s.Require()
	s.Server = server.New(s.Svc, server.Options{RatePerSecond: 0.001, Burst: 2})

	require.Equal(http.StatusOK, s.get("/api/epoch-duration").Code)
	require.Equal(http.StatusOK, s.get("/api/epoch-duration").Code)
	rec := s.get("/api/epoch-duration")
	s.requireError(rec, http.StatusTooManyRequests, "RateLimited")
	require.Equal("1", rec.Header().Get("Retry-After"))

	// a forwarded header from an untrusted peer does not open a new bucket
	s.requireError(s.get("/api/epoch-duration", "X-Forwarded-For", "198.51.100.7"), http.StatusTooManyRequests, "RateLimited")
	// health checks are not limited
	require.Equal(http.StatusOK, s.get("/healthz").Code)
}

func (s *ServerTestSuite) TestRateLimitBehindTrustedProxy() {
	require := s.Require()
	trusted, err := server.ParseTrustedProxies([]string{"192.0.2.0/24"})
	require.NoError(err)
	s.Server = server.New(s.Svc, server.Options{RatePerSecond: 0.001, Burst: 1, TrustedProxies: trusted})

	require.Equal(http.StatusOK, s.get("/api/epoch-duration", "X-Forwarded-For", "198.51.100.7").Code)
	s.requireError(s.get("/api/epoch-duration", "X-Forwarded-For", "198.51.100.7"), http.StatusTooManyRequests, "RateLimited")
	// the proxy appends the real peer, so a spoofed left entry is ignored
	s.requireError(s.get("/api/epoch-duration", "X-Forwarded-For", "203.0.113.9, 198.51.100.7"), http.StatusTooManyRequests, "RateLimited")
	require.Equal(http.StatusOK, s.get("/api/epoch-duration", "X-Forwarded-For", "198.51.100.8").Code)
}

func readUntil(s *suite.Suite, reader *bufio.Reader, prefix string) string {
	for {
		line, err := reader.ReadString('\n')
		s.Require().NoError(err)
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
}

func (s *ServerTestSuite) openSSE(url string) *bufio.Reader {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url + "/api/sse/blocks")
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal("text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readUntil(&s.Suite, reader, ": connected")
	return reader
}

func (s *ServerTestSuite) TestBlocksSSE() {
	require := s.Require()
	ts := httptest.NewServer(s.Server.Handler())
	defer ts.Close()

	reader := s.openSSE(ts.URL)
	ref := s.Chain.Finalize()

	require.Equal(fmt.Sprint(ref.Number), readUntil(&s.Suite, reader, "id: "))
	require.Equal("block", readUntil(&s.Suite, reader, "event: "))
	var block struct {
		Number uint64 `json:"number"`
		Hash   string `json:"hash"`
	}
	require.NoError(json.Unmarshal([]byte(readUntil(&s.Suite, reader, "data: ")), &block))
	require.Equal(ref.Number, block.Number)
	require.Equal(ref.Hash.String(), block.Hash)
}

func (s *ServerTestSuite) TestBlocksSSEUpstreamFailure() {
	require := s.Require()
	ts := httptest.NewServer(s.Server.Handler())
	defer ts.Close()

	reader := s.openSSE(ts.URL)
	s.Chain.FailSubscriptions(fmt.Errorf("subscription dropped"))

	require.Equal("error", readUntil(&s.Suite, reader, "event: "))
	var body errorResponse
	require.NoError(json.Unmarshal([]byte(readUntil(&s.Suite, reader, "data: ")), &body))
	require.Equal("ChainUnavailable", body.Error.Status)
}

func (s *ServerTestSuite) TestBlocksWebSocket() {
	require := s.Require()
	ts := httptest.NewServer(s.Server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws/blocks"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(err)
	defer conn.Close()
	require.NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))

	first := s.Chain.Finalize()
	second := s.Chain.Finalize()
	for _, ref := range []uint64{first.Number, second.Number} {
		var block struct {
			Number uint64 `json:"number"`
		}
		require.NoError(conn.ReadJSON(&block))
		require.Equal(ref, block.Number)
	}

	s.Chain.FailSubscriptions(fmt.Errorf("subscription dropped"))
	var body errorResponse
	require.NoError(conn.ReadJSON(&body))
	require.Equal("ChainUnavailable", body.Error.Status)
}
