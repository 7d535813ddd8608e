package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/utils/response"
	"github.com/sirupsen/logrus"
)

// bodyLimit leaves room for the largest attachment plus multipart overhead
const bodyLimit = 25 << 20

type APIServer struct {
	app           *fiber.App
	listenAddress string
	log           logrus.FieldLogger
}

func NewAPIServer(listenAddress string, log logrus.FieldLogger) *APIServer {
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:   "univast-api",
			BodyLimit: bodyLimit,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				if e, ok := err.(*fiber.Error); ok {
					return response.Error(c, e.Code, e.Message, "HTTP_ERROR")
				}
				log.WithError(err).WithField("path", c.Path()).Error("unhandled request error")
				return response.InternalServerError(c, "")
			},
		}),
		listenAddress: listenAddress,
		log:           log,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	s.log.WithField("address", s.listenAddress).Info("starting API server")

	return s.app.Listen(s.listenAddress)
}

// Shutdown stops accepting connections and waits up to timeout for in-flight requests
func (s *APIServer) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}
