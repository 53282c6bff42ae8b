package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dkeye/rendezvous/internal/adapters/rtc"
	"github.com/dkeye/rendezvous/internal/client"
	"github.com/dkeye/rendezvous/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const chatChannel = "chat"

// Session is one matched conversation: signaling over the rendezvous
// mailbox, then chat over the data channel.
type Session struct {
	client    *client.Client
	self      domain.ClientID
	roomID    domain.RoomID
	peerID    domain.ClientID
	initiator bool
	profile   Profile

	outMu sync.Mutex
	out   io.Writer
}

func (s *Session) println(line string) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintln(s.out, line)
}

func (s *Session) send(ctx context.Context, kind domain.Kind, payload any) {
	if err := s.client.Send(ctx, s.roomID, s.self, s.peerID, kind, payload); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("module", "cli.session").Str("kind", string(kind)).Msg("signal send failed")
	}
}

// Run negotiates the connection and pumps lines from in to the peer until
// in ends, the peer leaves or ctx is done.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peer, err := rtc.NewDataPeer(rtc.DefaultConfig(), s.self)
	if err != nil {
		return err
	}
	peerCtx := peer.Start(ctx)
	defer s.teardown(peer)

	opened := make(chan struct{})
	var openOnce sync.Once
	peer.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		s.send(ctx, domain.KindICE, ci)
	})
	peer.OnOpen(func() {
		openOnce.Do(func() { close(opened) })
		if s.profile.Name == "" {
			return
		}
		if b, err := encodeEnvelope(envProfile, s.profile); err == nil {
			_ = peer.Send(b)
		}
	})
	peer.OnMessage(func(data []byte) {
		if line, ok := render(data); ok {
			s.println(line)
		}
	})
	peer.OnClosed(cancel)

	if s.initiator {
		if err := peer.CreateChannel(chatChannel); err != nil {
			return err
		}
		offer, err := peer.CreateOffer()
		if err != nil {
			return err
		}
		s.send(ctx, domain.KindOffer, offer)
	}

	poller := s.client.NewPoller(s.roomID, s.self)
	go poller.Run(ctx, client.DefaultPollInterval, func(m domain.Message) bool {
		return s.handleSignal(ctx, peer, m, cancel)
	}, func(err error) {
		log.Warn().Err(err).Str("module", "cli.session").Msg("poll failed")
	})

	s.println(SystemStyle.Render(fmt.Sprintf("matched with %s in %s, connecting…", s.peerID, s.roomID)))
	select {
	case <-opened:
	case <-peerCtx.Done():
		return nil
	}
	s.println(SystemStyle.Render("connected, type to chat (Ctrl-D to quit)"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			b, err := encodeEnvelope(envMsg, line)
			if err != nil {
				return err
			}
			if err := peer.Send(b); err != nil {
				return fmt.Errorf("send chat: %w", err)
			}
		}
	}
}

// handleSignal applies one mailbox message. It returns false once the
// peer has left.
func (s *Session) handleSignal(ctx context.Context, peer *rtc.DataPeer, m domain.Message, cancel context.CancelFunc) bool {
	if m.From != s.peerID {
		log.Debug().Str("module", "cli.session").Str("from", string(m.From)).Msg("ignoring signal from non-peer")
		return true
	}

	switch m.Kind {
	case domain.KindOffer:
		var offer webrtc.SessionDescription
		if err := json.Unmarshal(m.Payload, &offer); err != nil {
			log.Warn().Err(err).Str("module", "cli.session").Msg("bad offer")
			return true
		}
		answer, err := peer.ApplyOfferAndCreateAnswer(offer)
		if err != nil {
			log.Warn().Err(err).Str("module", "cli.session").Msg("answer failed")
			return true
		}
		s.send(ctx, domain.KindAnswer, answer)
	case domain.KindAnswer:
		var answer webrtc.SessionDescription
		if err := json.Unmarshal(m.Payload, &answer); err != nil {
			log.Warn().Err(err).Str("module", "cli.session").Msg("bad answer")
			return true
		}
		if err := peer.ApplyAnswer(answer); err != nil {
			log.Warn().Err(err).Str("module", "cli.session").Msg("apply answer failed")
		}
	case domain.KindICE:
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(m.Payload, &ci); err != nil || ci.Candidate == "" {
			return true
		}
		if err := peer.AddICECandidate(ci); err != nil {
			log.Debug().Err(err).Str("module", "cli.session").Msg("candidate rejected")
		}
	case domain.KindLeave:
		s.println(SystemStyle.Render(string(s.peerID) + " left"))
		cancel()
		return false
	}
	return true
}

func (s *Session) teardown(peer *rtc.DataPeer) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.send(ctx, domain.KindLeave, nil)
	peer.Close()
}
