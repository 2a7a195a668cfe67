package cache

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/api/models"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/config"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/bridge"
)

type LruCache struct {
	lruDepositList      *lru.LRU[string, any]
	lruWithdrawalList   *lru.LRU[string, any]
	lruWithdrawalByGuid *lru.LRU[string, any]
}

func NewLruCache(cfg config.CacheConfig) *LruCache {
	lruDepositList := lru.NewLRU[string, any](cfg.ListSize, nil, cfg.ListExpireTime)
	lruWithdrawalList := lru.NewLRU[string, any](cfg.ListSize, nil, cfg.ListExpireTime)
	lruWithdrawalByGuid := lru.NewLRU[string, any](cfg.DetailSize, nil, cfg.DetailExpireTime)
	return &LruCache{
		lruDepositList:      lruDepositList,
		lruWithdrawalList:   lruWithdrawalList,
		lruWithdrawalByGuid: lruWithdrawalByGuid,
	}
}

func (lc *LruCache) GetDepositList(key string) (*models.DepositsResponse, error) {
	result, ok := lc.lruDepositList.Get(key)
	if !ok {
		return nil, errors.New("lru get deposit list fail")
	}
	return result.(*models.DepositsResponse), nil
}

func (lc *LruCache) AddDepositList(key string, data *models.DepositsResponse) {
	lc.lruDepositList.Add(key, data)
}

func (lc *LruCache) GetWithdrawalList(key string) (*models.WithdrawalsResponse, error) {
	result, ok := lc.lruWithdrawalList.Get(key)
	if !ok {
		return nil, errors.New("lru get withdrawal list fail")
	}
	return result.(*models.WithdrawalsResponse), nil
}

func (lc *LruCache) AddWithdrawalList(key string, data *models.WithdrawalsResponse) {
	lc.lruWithdrawalList.Add(key, data)
}

func (lc *LruCache) GetWithdrawalByGuid(key string) (*bridge.Withdrawal, error) {
	result, ok := lc.lruWithdrawalByGuid.Get(key)
	if !ok {
		return nil, errors.New("lru get withdrawal by guid fail")
	}
	return result.(*bridge.Withdrawal), nil
}

func (lc *LruCache) AddWithdrawalByGuid(key string, data *bridge.Withdrawal) {
	lc.lruWithdrawalByGuid.Add(key, data)
}
