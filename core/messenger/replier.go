package messenger

import "github.com/m3rciful/lingobot/core/sender"

// NewReplier returns a fire-and-forget replier that sends through c.
func NewReplier(outbox *sender.Outbox, c *Client) *sender.Replier {
	return sender.NewReplier(outbox, platform, c.SendText)
}
