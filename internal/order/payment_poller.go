package order

import (
	"context"
	"errors"
	"log"
	"time"
)

// PaymentPoller sweeps orders still awaiting settlement and reconciles them
// with the gateway, so a lost webhook cannot strand an order. Orders that
// never got a tracking id are re-initiated; the rest are polled for status.
type PaymentPoller struct {
	repo      Repository
	gateway   PaymentGateway
	assembler *Assembler
	lifecycle *Lifecycle

	tick      time.Duration
	olderThan time.Duration
	batchSize int
}

func NewPaymentPoller(repo Repository, gateway PaymentGateway, assembler *Assembler, lifecycle *Lifecycle, tick time.Duration) *PaymentPoller {
	if tick <= 0 {
		tick = 30 * time.Second
	}
	return &PaymentPoller{
		repo:      repo,
		gateway:   gateway,
		assembler: assembler,
		lifecycle: lifecycle,
		tick:      tick,
		olderThan: time.Minute,
		batchSize: 50,
	}
}

func (p *PaymentPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *PaymentPoller) sweep(ctx context.Context) {
	orders, err := p.repo.ListUnsettled(ctx, p.olderThan, p.batchSize)
	if err != nil {
		log.Printf("failed to list unsettled orders: %v", err)
		return
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			return
		}

		if order.TrackingID == "" {
			if errInit := p.assembler.InitiatePayment(ctx, order); errInit != nil {
				// Gateway errors are retryable; the next sweep will try again.
				log.Printf("re-initiation failed for order %v: %v", order.ID, errInit)
			}
			continue
		}

		code, errCheck := p.gateway.CheckPaymentStatus(ctx, order.TrackingID)
		if errCheck != nil {
			if errors.Is(errCheck, context.Canceled) {
				return
			}
			log.Printf("status check failed for order %v: %v", order.ID, errCheck)
			continue
		}

		if _, errApply := p.lifecycle.ApplyGatewayReport(ctx, order.TrackingID, code); errApply != nil {
			log.Printf("failed to apply gateway report for order %v: %v", order.ID, errApply)
		}
	}
}
