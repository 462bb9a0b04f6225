package bot

import (
	"context"

	"github.com/solwatch/buyops/core"
	"github.com/solwatch/buyops/exec"
	"github.com/solwatch/buyops/types"
)

// NotifyingExecutor decorates a trade executor with dispatch alerts. The
// alert is fired off the dispatch path so a slow Telegram API cannot hold
// the buy slot.
type NotifyingExecutor struct {
	Inner core.TradeExecutor
	Bot   *TelegramBot
}

func (n *NotifyingExecutor) Dispatch(ctx context.Context, req exec.BuyRequest) (types.TradeDispatch, error) {
	dispatch, err := n.Inner.Dispatch(ctx, req)
	if err != nil {
		return dispatch, err
	}
	if n.Bot != nil {
		go n.Bot.NotifyBuy(req, dispatch.TxID)
	}
	return dispatch, nil
}
