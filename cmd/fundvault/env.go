package main

import (
	"context"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vaultsandbox/fundvault"
	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
	"github.com/vaultsandbox/fundvault/internal/engine"
	"github.com/vaultsandbox/fundvault/internal/ledger"
	"github.com/vaultsandbox/fundvault/store"
	"github.com/vaultsandbox/fundvault/store/badgerstore"
)

// participantContext separates participant key seeds from other uses of
// a name.
const participantContext = "fundvault.cli.participant"

// environment is one wired simulation: runtime, reference collaborators,
// vault store and manager.
type environment struct {
	logger  *zap.Logger
	runtime *authority.Runtime
	engine  *engine.Engine
	ledger  *ledger.Ledger
	store   store.Store
	manager *fundvault.Manager
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)), nil
}

func newEnvironment(s *Settings, logger *zap.Logger) (*environment, error) {
	rt := authority.NewRuntime()
	engineOpts := []engine.Option{engine.WithLogger(logger.Named("engine"))}
	kp, err := s.engineKeypair()
	if err != nil {
		return nil, fmt.Errorf("engine key: %w", err)
	}
	if kp != nil {
		engineOpts = append(engineOpts, engine.WithKeypair(kp))
	}
	eng, err := engine.New(rt, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	led, err := ledger.New(eng, rt, ledger.WithLogger(logger.Named("ledger")))
	if err != nil {
		return nil, fmt.Errorf("start ledger: %w", err)
	}

	var st store.Store = store.NewMemory()
	if s.DataDir != "" {
		if st, err = badgerstore.Open(s.DataDir, logger.Named("badger")); err != nil {
			return nil, err
		}
	}

	mgr, err := fundvault.New(rt, st, eng, led, s.managerOptions(logger.Named("vault"))...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &environment{
		logger:  logger,
		runtime: rt,
		engine:  eng,
		ledger:  led,
		store:   st,
		manager: mgr,
	}, nil
}

func (e *environment) Close() error {
	_ = e.logger.Sync()
	return e.store.Close()
}

// reveal decrypts h on behalf of reader. It fails unless reader holds a
// read capability.
func (e *environment) reveal(ctx context.Context, h confidential.Handle, reader authority.Authorizer) (uint64, error) {
	cred, err := reader.Authorize(confidential.RevealIntent(h))
	if err != nil {
		return 0, err
	}
	return e.engine.Reveal(ctx, h, cred)
}

// signerFor derives the participant key for name. The same name always
// yields the same address.
func signerFor(name string) (*authority.KeySigner, error) {
	h := blake3.New()
	h.WriteString(participantContext)
	h.Write([]byte{0})
	h.WriteString(name)
	return authority.KeySignerFromSeed(h.Sum(nil))
}

func nopLogger() *zap.Logger { return zap.NewNop() }
