// Package consumer reads occupancy confirmations published by parking devices.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"parkshare/config"
	"parkshare/internal/delivery"
	deliverycontext "parkshare/internal/delivery/context"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/infra/metrics"
	"parkshare/internal/infra/rabbitmq"
	"parkshare/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// DeviceSignal is the message a parking device publishes when a car is detected.
type DeviceSignal struct {
	ParkingID uuid.UUID `json:"parkingId"`
	RequestID string    `json:"requestId,omitempty"`
}

// Params holds dependencies for the device consumer, injected by Fx.
type Params struct {
	fx.In

	Lc            fx.Lifecycle
	Config        *config.Config
	Logger        *slog.Logger
	Broker        *rabbitmq.Broker `optional:"true"`
	ReservationUC usecase.ReservationUsecase
}

// DeviceConsumer turns device signals into occupancy confirmations.
type DeviceConsumer struct {
	broker        *rabbitmq.Broker
	queue         string
	reservationUC usecase.ReservationUsecase
	logger        *slog.Logger

	stopCtx context.Context
	stop    context.CancelFunc
}

// NewDeviceConsumer creates the consumer. Without a broker or device queue it serves nothing.
func NewDeviceConsumer(params Params) delivery.Delivery {
	stopCtx, stop := context.WithCancel(context.Background())
	c := &DeviceConsumer{
		broker:        params.Broker,
		reservationUC: params.ReservationUC,
		logger:        params.Logger,
		stopCtx:       stopCtx,
		stop:          stop,
	}
	if params.Config.RabbitMQ != nil {
		c.queue = params.Config.RabbitMQ.DeviceQueue
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			stop()

			return nil
		},
	})

	return c
}

// Serve consumes the device queue until the application stops.
func (c *DeviceConsumer) Serve(ctx context.Context) error {
	if c.broker == nil || c.queue == "" {
		c.logger.Info("RabbitMQ not configured, device consumer disabled")

		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(c.stopCtx, cancel)
	defer stopWatch()

	return c.broker.Consume(ctx, c.queue, c.Handle)
}

// Handle confirms the pending reservation of the signalled parking.
// Signals for parkings with nothing pending are acknowledged and malformed ones dropped.
func (c *DeviceConsumer) Handle(ctx context.Context, body []byte) error {
	var signal DeviceSignal
	if err := json.Unmarshal(body, &signal); err != nil {
		return rabbitmq.Drop(errors.Wrap(err, "decode device signal"))
	}
	if signal.ParkingID == uuid.Nil {
		return rabbitmq.Drop(errors.New("device signal without parking id"))
	}

	requestID := signal.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	logger := c.logger.With(slog.String("request_id", requestID), slog.Any("parkingID", signal.ParkingID))
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, logger)

	_, err := c.reservationUC.ConfirmOccupancy(ctx, signal.ParkingID)
	metrics.ObserveReservation("confirm", err)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domainerrors.ErrNoPendingReservation), errors.Is(err, domainerrors.ErrParkingNotFound):
		logger.Warn("Ignoring device signal", slog.Any("error", err))

		return nil
	default:
		return errors.Wrap(err, "confirm occupancy")
	}
}
