package service

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/api/models"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/bridge"
)

type Service interface {
	GetDepositList(*models.QueryDWParams) (*models.DepositsResponse, error)
	GetWithdrawalList(*models.QueryDWParams) (*models.WithdrawalsResponse, error)
	GetWithdrawalByGuid(*models.QueryGuidParams) (*bridge.Withdrawal, error)
	GetManualRecoveryList() (*models.ManualRecoveryResponse, error)

	QueryDWListParams(address string, page string, pageSize string, order string) (*models.QueryDWParams, error)
	QueryByGuidParams(guid string) (*models.QueryGuidParams, error)
}

type HandlerSvc struct {
	logger          log.Logger
	v               *Validator
	depositsView    bridge.DepositsView
	withdrawalsView bridge.WithdrawalsView
}

func New(v *Validator, depositsView bridge.DepositsView, withdrawalsView bridge.WithdrawalsView, l log.Logger) Service {
	return &HandlerSvc{
		logger:          l,
		v:               v,
		depositsView:    depositsView,
		withdrawalsView: withdrawalsView,
	}
}

func (h HandlerSvc) GetDepositList(params *models.QueryDWParams) (*models.DepositsResponse, error) {
	addressToLower := strings.ToLower(params.Address)
	depositList, total := h.depositsView.DepositList(addressToLower, params.Page, params.PageSize, params.Order)
	return &models.DepositsResponse{
		Current: params.Page,
		Size:    params.PageSize,
		Total:   total,
		Records: depositList,
	}, nil
}

func (h HandlerSvc) GetWithdrawalList(params *models.QueryDWParams) (*models.WithdrawalsResponse, error) {
	addressToLower := strings.ToLower(params.Address)
	withdrawalList, total := h.withdrawalsView.WithdrawalList(addressToLower, params.Page, params.PageSize, params.Order)
	return &models.WithdrawalsResponse{
		Current: params.Page,
		Size:    params.PageSize,
		Total:   total,
		Records: withdrawalList,
	}, nil
}

func (h HandlerSvc) GetWithdrawalByGuid(params *models.QueryGuidParams) (*bridge.Withdrawal, error) {
	return h.withdrawalsView.WithdrawalByGUID(params.Guid)
}

func (h HandlerSvc) GetManualRecoveryList() (*models.ManualRecoveryResponse, error) {
	recoveryList, err := h.withdrawalsView.ManualRecoveryWithdrawals()
	if err != nil {
		return nil, err
	}
	return &models.ManualRecoveryResponse{
		Total:   len(recoveryList),
		Records: recoveryList,
	}, nil
}

func (h HandlerSvc) QueryDWListParams(address string, page string, pageSize string, order string) (*models.QueryDWParams, error) {
	var paraAddress string
	if address == "0x00" {
		paraAddress = "0x00"
	} else {
		addr, err := h.v.ParseValidateAddress(address)
		if err != nil {
			h.logger.Error("invalid address param", "address", address, "err", err)
			return nil, err
		}
		paraAddress = addr.String()
	}

	pageInt, err := strconv.Atoi(page)
	if err != nil {
		return nil, err
	}
	pageVal := h.v.ValidatePage(pageInt)

	pageSizeInt, err := strconv.Atoi(pageSize)
	if err != nil {
		return nil, err
	}
	pageSizeVal := h.v.ValidatePageSize(pageSizeInt)
	orderBy := h.v.ValidateOrder(order)

	return &models.QueryDWParams{
		Address:  paraAddress,
		Page:     pageVal,
		PageSize: pageSizeVal,
		Order:    orderBy,
	}, nil
}

func (h HandlerSvc) QueryByGuidParams(guid string) (*models.QueryGuidParams, error) {
	guidValue, err := h.v.ParseValidateGuid(guid)
	if err != nil {
		h.logger.Error("invalid query param", "guid", guid, "err", err)
		return nil, err
	}
	return &models.QueryGuidParams{
		Guid: guidValue,
	}, nil
}
