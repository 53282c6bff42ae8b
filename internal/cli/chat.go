package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dkeye/rendezvous/internal/client"
	"github.com/dkeye/rendezvous/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	chatID       string
	chatRoom     string
	chatName     string
	chatInterest string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Find a partner and chat over a direct data channel",
	Example: `  rendezvous-peer chat
  rendezvous-peer chat --room standup --name ada`,
	RunE: func(cmd *cobra.Command, args []string) error {
		self := domain.ClientID(chatID)
		if self == "" {
			self = domain.ClientID(uuid.NewString())
		}
		if err := self.Validate(); err != nil {
			return err
		}

		s, err := match(cmd.Context(), client.New(serverURL), self, domain.RoomID(chatRoom))
		if err != nil {
			return err
		}
		s.profile = Profile{Name: chatName, Interest: chatInterest}
		s.out = cmd.OutOrStdout()
		return s.Run(cmd.Context(), os.Stdin)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatID, "id", "", "client id (random when empty)")
	chatCmd.Flags().StringVarP(&chatRoom, "room", "r", "", "named room to join instead of random pairing")
	chatCmd.Flags().StringVarP(&chatName, "name", "n", "", "display name sent to the peer")
	chatCmd.Flags().StringVar(&chatInterest, "interest", "", "interest sent to the peer")
	rootCmd.AddCommand(chatCmd)
}

// match waits for a partner. In queue mode the server picks the peer and
// the initiator; in a named room the first other participant is the peer.
func match(ctx context.Context, c *client.Client, self domain.ClientID, room domain.RoomID) (*Session, error) {
	fmt.Fprintln(os.Stderr, MutedStyle.Render(fmt.Sprintf("%s waiting for a partner…", self)))

	res, err := c.WaitMatched(ctx, self, room, client.DefaultJoinInterval)
	if err != nil {
		if room == "" {
			leaveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = c.Leave(leaveCtx, self)
			cancel()
		}
		return nil, err
	}

	s := &Session{client: c, self: self}
	if room == "" {
		if res.PeerID == "" {
			return nil, errors.New("already in room " + string(res.RoomID) + " without a peer")
		}
		s.roomID, s.peerID, s.initiator = res.RoomID, res.PeerID, res.Initiator
		return s, nil
	}
	s.roomID = room
	s.peerID = res.Others[0]
	s.initiator = domain.IsInitiator(self, s.peerID)
	return s, nil
}
