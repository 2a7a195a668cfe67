package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// WithdrawalListHandler ... Handles /api/v1/withdrawals GET requests
func (h Routes) WithdrawalListHandler(w http.ResponseWriter, r *http.Request) {
	addressValue := r.URL.Query().Get("address")
	pageQuery := r.URL.Query().Get("page")
	pageSizeQuery := r.URL.Query().Get("pageSize")
	order := r.URL.Query().Get("order")

	params, err := h.svc.QueryDWListParams(addressValue, pageQuery, pageSizeQuery, order)
	if err != nil {
		http.Error(w, "invalid query params", http.StatusBadRequest)
		h.logger.Error("error reading request params", "err", err.Error())
		return
	}
	cacheKey := fmt.Sprintf("withdrawalList{address:%s,page:%s,pageSize:%s,order:%s}", addressValue, pageQuery, pageSizeQuery, order)
	if h.enableCache {
		response, _ := h.cache.GetWithdrawalList(cacheKey)
		if response != nil {
			err = jsonResponse(w, response, http.StatusOK)
			if err != nil {
				h.logger.Error("Error writing response", "err", err.Error())
			}
			return
		}
	}
	withdrawalList, err := h.svc.GetWithdrawalList(params)
	if err != nil {
		http.Error(w, "Internal server error reading withdrawal list", http.StatusInternalServerError)
		h.logger.Error("Unable to read withdrawal list from DB", "err", err.Error())
		return
	}
	if h.enableCache {
		h.cache.AddWithdrawalList(cacheKey, withdrawalList)
	}
	err = jsonResponse(w, withdrawalList, http.StatusOK)
	if err != nil {
		h.logger.Error("Error writing response", "err", err.Error())
	}
}

// WithdrawalByGuidHandler ... Handles /api/v1/withdrawals/guid/{guid} GET requests
func (h Routes) WithdrawalByGuidHandler(w http.ResponseWriter, r *http.Request) {
	guidStr := chi.URLParam(r, "guid")
	params, err := h.svc.QueryByGuidParams(guidStr)
	if err != nil {
		http.Error(w, "invalid query params", http.StatusBadRequest)
		h.logger.Error("error reading request params", "err", err.Error())
		return
	}
	cacheKey := fmt.Sprintf("withdrawal{guid:%s}", guidStr)
	if h.enableCache {
		response, _ := h.cache.GetWithdrawalByGuid(cacheKey)
		if response != nil {
			err = jsonResponse(w, response, http.StatusOK)
			if err != nil {
				h.logger.Error("Error writing response", "err", err.Error())
			}
			return
		}
	}
	withdrawal, err := h.svc.GetWithdrawalByGuid(params)
	if err != nil {
		http.Error(w, "Internal server error reading withdrawal by guid", http.StatusInternalServerError)
		h.logger.Error("Unable to read withdrawal by guid from DB", "err", err.Error())
		return
	}
	if withdrawal == nil {
		http.Error(w, "withdrawal not found", http.StatusNotFound)
		return
	}
	if h.enableCache {
		h.cache.AddWithdrawalByGuid(cacheKey, withdrawal)
	}
	err = jsonResponse(w, withdrawal, http.StatusOK)
	if err != nil {
		h.logger.Error("Error writing response", "err", err.Error())
	}
}

// ManualRecoveryListHandler ... Handles /api/v1/withdrawals/recovery GET requests
func (h Routes) ManualRecoveryListHandler(w http.ResponseWriter, r *http.Request) {
	recoveryList, err := h.svc.GetManualRecoveryList()
	if err != nil {
		http.Error(w, "Internal server error reading recovery list", http.StatusInternalServerError)
		h.logger.Error("Unable to read recovery list from DB", "err", err.Error())
		return
	}
	err = jsonResponse(w, recoveryList, http.StatusOK)
	if err != nil {
		h.logger.Error("Error writing response", "err", err.Error())
	}
}
