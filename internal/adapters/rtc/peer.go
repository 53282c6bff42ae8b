package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/rendezvous/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrChannelNotOpen = errors.New("data channel is not open")

// DataPeer is one side of a peer connection carrying a single data channel.
// The initiator creates the channel and the offer; the other side answers
// and receives the channel in OnDataChannel. Remote ICE candidates that
// arrive before the remote description are buffered.
type DataPeer struct {
	pc *webrtc.PeerConnection
	id domain.ClientID

	mu        sync.Mutex
	dc        *webrtc.DataChannel
	remoteSet bool
	pending   []webrtc.ICECandidateInit

	onICE     func(webrtc.ICECandidateInit)
	onOpen    func()
	onMessage func([]byte)
	onClosed  func()
	closeOnce sync.Once
	cancel    context.CancelFunc
}

func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func NewDataPeer(cfg webrtc.Configuration, id domain.ClientID) (*DataPeer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &DataPeer{pc: pc, id: id}, nil
}

// Start installs the connection callbacks. The returned context is done
// once the connection fails or closes.
func (p *DataPeer) Start(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "rtc").Str("client_id", string(p.id)).Str("ice_state", s.String()).Msg("ICE state")
	})

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("client_id", string(p.id)).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			p.Close()
		}
	})

	p.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		p.mu.Lock()
		fn := p.onICE
		p.mu.Unlock()
		if cand != nil && fn != nil {
			fn(cand.ToJSON())
		}
	})

	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		log.Info().Str("module", "rtc").Str("client_id", string(p.id)).Str("label", dc.Label()).Msg("remote data channel")
		p.attach(dc)
	})

	return ctx
}

// CreateChannel opens the data channel on the initiating side. It must be
// called before CreateOffer so the offer carries the application section.
func (p *DataPeer) CreateChannel(label string) error {
	ordered := true
	dc, err := p.pc.CreateDataChannel(label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	p.attach(dc)
	return nil
}

func (p *DataPeer) attach(dc *webrtc.DataChannel) {
	p.mu.Lock()
	p.dc = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		log.Info().Str("module", "rtc").Str("client_id", string(p.id)).Str("label", dc.Label()).Msg("data channel open")
		p.mu.Lock()
		fn := p.onOpen
		p.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		p.mu.Lock()
		fn := p.onMessage
		p.mu.Unlock()
		if fn != nil {
			fn(msg.Data)
		}
	})
	dc.OnClose(func() {
		log.Info().Str("module", "rtc").Str("client_id", string(p.id)).Msg("data channel closed")
		go p.Close()
	})
}

func (p *DataPeer) CreateOffer() (*webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return p.pc.LocalDescription(), nil
}

func (p *DataPeer) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := p.setRemote(offer); err != nil {
		return nil, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return p.pc.LocalDescription(), nil
}

func (p *DataPeer) ApplyAnswer(answer webrtc.SessionDescription) error {
	return p.setRemote(answer)
}

func (p *DataPeer) setRemote(desc webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, ci := range pending {
		if err := p.pc.AddICECandidate(ci); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("client_id", string(p.id)).Msg("buffered candidate rejected")
		}
	}
	return nil
}

// AddICECandidate applies a remote candidate, or buffers it until the
// remote description is known.
func (p *DataPeer) AddICECandidate(ci webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if !p.remoteSet {
		p.pending = append(p.pending, ci)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	if err := p.pc.AddICECandidate(ci); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

func (p *DataPeer) Send(data []byte) error {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	return dc.Send(data)
}

func (p *DataPeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	p.onICE = fn
	p.mu.Unlock()
}

func (p *DataPeer) OnOpen(fn func()) {
	p.mu.Lock()
	p.onOpen = fn
	p.mu.Unlock()
}

func (p *DataPeer) OnMessage(fn func([]byte)) {
	p.mu.Lock()
	p.onMessage = fn
	p.mu.Unlock()
}

// OnClosed runs once, on the first of Close, channel close or connection failure.
func (p *DataPeer) OnClosed(fn func()) {
	p.mu.Lock()
	p.onClosed = fn
	p.mu.Unlock()
}

func (p *DataPeer) Close() {
	p.closeOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		if err := p.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("client_id", string(p.id)).Msg("close error")
		} else {
			log.Info().Str("module", "rtc").Str("client_id", string(p.id)).Msg("closed")
		}
		p.mu.Lock()
		fn := p.onClosed
		p.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}
