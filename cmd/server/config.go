package main

import (
	"errors"

	"github.com/dmitrymomot/codeai/pkg/email"
	"github.com/dmitrymomot/codeai/pkg/googleid"
	"github.com/dmitrymomot/codeai/pkg/hasher"
	"github.com/dmitrymomot/codeai/pkg/httpserver"
	"github.com/dmitrymomot/codeai/pkg/jwt"
	"github.com/dmitrymomot/codeai/pkg/mongo"
	"github.com/dmitrymomot/codeai/pkg/notify"
	"github.com/dmitrymomot/codeai/pkg/ratelimiter"
	"github.com/dmitrymomot/codeai/pkg/redis"
	"github.com/dmitrymomot/codeai/svc/account"
)

// Store drivers.
const (
	storeMongo  = "mongo"
	storeMemory = "memory"
)

var (
	errUnknownStore = errors.New("unknown STORE_DRIVER, expected mongo or memory")
	errMissingMongo = errors.New("MONGODB_URL is required when STORE_DRIVER=mongo")
)

type appConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"codeai-auth"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`

	HTTP      httpserver.Config
	Mongo     mongo.Config
	Redis     redis.Config
	JWT       jwt.Config
	Google    googleid.Config
	Email     email.Config
	Notify    notify.Config
	Hasher    hasher.Config
	Account   account.Config
	RateLimit ratelimiter.Config `envPrefix:"RATE_LIMIT_"`
}

func (c appConfig) validate() error {
	switch c.StoreDriver {
	case storeMongo:
		if c.Mongo.ConnectionURL == "" {
			return errMissingMongo
		}
	case storeMemory:
	default:
		return errUnknownStore
	}
	return nil
}
