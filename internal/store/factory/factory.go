// Package factory 按配置创建存储后端
package factory

import (
	"go.uber.org/zap"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/nerdneilsfield/ocr-bilingual/internal/config"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store/github"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store/gitrepo"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store/objectstore"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/retry"
)

// New 校验配置并创建 store.backend 指定的后端
func New(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}

	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Backend {
	case github.Name:
		gh := cfg.Store.GitHub
		s, err = github.New(github.Config{
			Owner:   gh.Owner,
			Repo:    gh.Repo,
			Branch:  gh.Branch,
			Token:   gh.Token,
			APIBase: gh.APIBase,
			Timeout: cfg.StoreTimeout(),
			Retry:   retry.DefaultConfig(),
		}, logger.Named("github"))
	case gitrepo.Name:
		g := cfg.Store.Git
		s, err = gitrepo.Open(g.Path, g.Branch, g.Author, logger.Named("gitrepo"))
	case objectstore.Name:
		m := cfg.Store.Minio
		s, err = objectstore.New(objectstore.Config{
			Endpoint:  m.Endpoint,
			Bucket:    m.Bucket,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
		}, logger.Named("minio"))
	default:
		return nil, apperr.Configuration("store.factory", "unknown store backend "+cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("remote store ready", zap.String("backend", s.Name()))
	return s, nil
}
