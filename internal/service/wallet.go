package service

import (
	"context"
	"fmt"

	"github.com/Fi44er/tron_bot/internal/models"
)

// EnsureWallet returns the user's active deposit wallet, generating and
// storing a new key pair on first use.
func (s *Service) EnsureWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	wallet, err := s.repo.GetActiveWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	address, privateKey, err := s.keys.GenerateKey()
	if err != nil {
		return nil, err
	}

	sealed, err := s.sealer.Encrypt(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to seal wallet key: %w", err)
	}

	wallet = &models.Wallet{
		UserID:              userID,
		Address:             address,
		PrivateKeyEncrypted: sealed,
		IsActive:            true,
	}
	if err := s.repo.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", userID).Infof("Deposit wallet %s issued", address)
	return wallet, nil
}
