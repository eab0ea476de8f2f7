// Package chiagate and its sub-packages implement the backend services to interact with Chia full nodes.
/*
chiagate provides you with two microservices:

1) a gateway microservice (package gateway) that implements a RESTful API for user requests such as listing the
 unspent coins and balance of an address, listing the NFTs an address owns, submitting spend bundles and passing
 allow-listed RPCs through to the full node.

2) a watcher microservice (package watcher) that provides real-time coin events for those addresses that monitoring
 has been requested for.

Architecture

The gateway and watcher services communicate via a message broker. The user can request the watcher to monitor
addresses channeling requests to the message broker. The watcher service consumes requests and polls the coin set of
the monitored addresses. When a coin appears or is spent, the watcher will send an event to the message broker.
Gateway services can then listen to the broker to notify their users about these events in real-time. The message
broker is implemented as a product agnostic layer (package lib/msg) and is configured via a JSON config file at
service startup.

Both gateway and watcher have their own database used for persistence. Each microservice's database can be standalone
or shared by the microservices. It's layered implementation (package lib/store) provides a database product agnostic
interface.

A chain layer (package lib/chain) wraps the full node RPC so new backends can be developed and added. The layer
provides the coin record, puzzle reveal and mempool operations the services need. Both the gateway and watcher
services will connect to the chains indicated in the JSON config file provided at startup.

The puzzle layer (package lib/clvm) implements the serialized program format, the curry pattern and the tree hash
used to recognize on-chain puzzles, and package lib/nft peels the NFT puzzle stack to reconstruct the state of an
NFT from its parent spend.

Depending on workload and resources, one or more instances of the microservices can be orchestrated in order to
provide the required service level to the users.

The microservices can also be monitored via a Prometheus API by setting the flag "-m" at startup.

Gateway

The gateway microservice (package gateway) can be started running cmd/gateway/main.go. The gateway exposes an HTTP
RESTful API that can be used by multiple clients.
The API provides basic functionality to get the available chains, request unspent coins and balances, list NFTs, set
addresses for monitoring and submit spend bundles to the chains. Hot read endpoints are served through a short-TTL
cache. Coin events sent by the watcher service are logged and can be read by clients. Any client front-end can also
get the events by consuming the appropriate queues of the message broker.

Watcher

The watcher microservice (package watcher) can be started running cmd/watcher/main.go. The watcher polls the coin set
of the monitored addresses on the configured chains and sends coin events to the message broker when a coin appears
or is spent. Gateway services can send requests for the watcher to start or stop monitoring addresses so that real
time eventing can be provided to the clients or front-end.

*/
package chiagate
