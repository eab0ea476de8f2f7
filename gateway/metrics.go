package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // prometheus collectors are registered once per process
var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chiagate_api_requests_total",
		Help: "API requests served, by route.",
	}, []string{"route"})

	nftUnsupported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chiagate_nft_unsupported_total",
		Help: "Coins skipped in NFT listings because their puzzle revision is not supported.",
	})

	nftRPCErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chiagate_nft_rpc_errors_total",
		Help: "Per-coin full-node RPC failures skipped during NFT listings.",
	})
)
