package routes

import (
	"fmt"
	"net/http"
)

// DepositListHandler ... Handles /api/v1/deposits GET requests
func (h Routes) DepositListHandler(w http.ResponseWriter, r *http.Request) {
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
	cacheKey := fmt.Sprintf("depositList{address:%s,page:%s,pageSize:%s,order:%s}", addressValue, pageQuery, pageSizeQuery, order)
	if h.enableCache {
		response, _ := h.cache.GetDepositList(cacheKey)
		if response != nil {
			err = jsonResponse(w, response, http.StatusOK)
			if err != nil {
				h.logger.Error("Error writing response", "err", err.Error())
			}
			return
		}
	}
	depositList, err := h.svc.GetDepositList(params)
	if err != nil {
		http.Error(w, "Internal server error reading deposit list", http.StatusInternalServerError)
		h.logger.Error("Unable to read deposit list from DB", "err", err.Error())
		return
	}
	if h.enableCache {
		h.cache.AddDepositList(cacheKey, depositList)
	}
	err = jsonResponse(w, depositList, http.StatusOK)
	if err != nil {
		h.logger.Error("Error writing response", "err", err.Error())
	}
}
