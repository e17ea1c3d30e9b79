package zmq

import (
	"fmt"

	zmq "github.com/pebbe/zmq4"
	"go.uber.org/zap"
)

// Broker forwards everything published on its XSUB endpoint to every
// subscriber of its XPUB endpoint, subscriptions flowing the other way.
type Broker struct {
	ctx  *zmq.Context
	xsub *zmq.Socket
	xpub *zmq.Socket
	log  *zap.Logger
}

// NewBroker binds both endpoints, e.g. tcp://*:5557 and tcp://*:5558
func NewBroker(xsubAddr, xpubAddr string, logger *zap.Logger) (*Broker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	zctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create zmq context: %w", err)
	}

	xsub, err := zctx.NewSocket(zmq.XSUB)
	if err != nil {
		zctx.Term()
		return nil, fmt.Errorf("create XSUB: %w", err)
	}
	xsub.SetLinger(0)
	if err := xsub.Bind(xsubAddr); err != nil {
		xsub.Close()
		zctx.Term()
		return nil, fmt.Errorf("bind XSUB %s: %w", xsubAddr, err)
	}

	xpub, err := zctx.NewSocket(zmq.XPUB)
	if err != nil {
		xsub.Close()
		zctx.Term()
		return nil, fmt.Errorf("create XPUB: %w", err)
	}
	xpub.SetLinger(0)
	if err := xpub.Bind(xpubAddr); err != nil {
		xsub.Close()
		xpub.Close()
		zctx.Term()
		return nil, fmt.Errorf("bind XPUB %s: %w", xpubAddr, err)
	}

	return &Broker{
		ctx:  zctx,
		xsub: xsub,
		xpub: xpub,
		log:  logger.Named("broker"),
	}, nil
}

// Run blocks forwarding messages until Close is called
func (b *Broker) Run() error {
	defer b.xsub.Close()
	defer b.xpub.Close()

	b.log.Info("forwarding bookmark broadcasts")
	err := zmq.Proxy(b.xsub, b.xpub, nil)
	if zmq.AsErrno(err) == zmq.ETERM {
		return nil
	}
	return err
}

// Close terminates the context, which makes Run return
func (b *Broker) Close() error {
	return b.ctx.Term()
}
