// Package roverfeed carries source records over a persistent websocket
// stream. A Publisher serves records and a Client follows one source,
// reconnecting and resubscribing from the last height it saw.
package roverfeed

import (
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
)

// Subscription is the first message a client sends after connecting.
// The publisher replays every record of SourceID from FromHeight on
// before streaming new ones.
type Subscription struct {
	SourceID   externalapi.SourceID `json:"sourceId"`
	FromHeight uint64               `json:"fromHeight"`
}
