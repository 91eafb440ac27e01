package dmxport

// OfflinePort accepts frames and discards them. It follows the same state
// machine as the hardware backends so callers can exercise the full port
// lifecycle without a device attached.
type OfflinePort struct {
	open bool
}

// NewOfflinePort returns a closed offline port.
func NewOfflinePort() *OfflinePort {
	return &OfflinePort{}
}

func (p *OfflinePort) Identity() Identity {
	return Identity{Kind: KindOffline}
}

func (p *OfflinePort) String() string {
	return "offline"
}

func (p *OfflinePort) Open() error {
	if p.open {
		return ErrAlreadyOpen
	}
	p.open = true
	return nil
}

func (p *OfflinePort) Write(frame []byte) error {
	if err := checkFrame(frame); err != nil {
		return err
	}
	if !p.open {
		return ErrNotOpen
	}
	return nil
}

func (p *OfflinePort) Close() error {
	p.open = false
	return nil
}
