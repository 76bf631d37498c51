package controllers

import (
	"net/http"
	"net/url"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/reports"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
)

type submitReviewRequest struct {
	Rating int    `json:"rating" validate:"min=1,max=5"`
	Title  string `json:"title" validate:"max=200"`
	Body   string `json:"body" validate:"required"`
}

type replyRequest struct {
	Response string `json:"response" validate:"required"`
}

type reportRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ReviewSubmit stores a review for moderation. Only verified buyers may review.
func ReviewSubmit(svc reviews.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, "/products", err)
			return
		}
		back := "/products/" + productID.String()
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}

		var req submitReviewRequest
		if err := validators.DecodeRequest(r, &req, func(form url.Values) {
			req.Rating = validators.FormInt(form.Get("rating"), 0)
			req.Title = validators.SanitizeString(form.Get("title"), 200)
			req.Body = validators.SanitizeString(form.Get("body"), 5000)
		}); err != nil {
			pages.fail(w, r, back, err)
			return
		}

		review, err := svc.Submit(r.Context(), reviews.SubmitInput{
			ProductID: productID,
			UserID:    userID,
			Rating:    req.Rating,
			Title:     req.Title,
			Body:      req.Body,
		})
		if err != nil {
			pages.fail(w, r, back, err)
			return
		}
		if responses.WantsJSON(r) {
			responses.WriteSuccessStatus(w, http.StatusCreated, review)
			return
		}
		pages.done(w, r, back, review, "Thanks! Your review is pending approval.")
	}
}

// ReviewReply stores the seller's public response to a review of their product.
func ReviewReply(svc reviews.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		back := responses.Back(r, "/dashboard")
		reviewID, err := validators.URLParamUUID(r, "reviewId")
		if err != nil {
			pages.fail(w, r, back, err)
			return
		}
		sellerID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}

		var req replyRequest
		if err := validators.DecodeRequest(r, &req, func(form url.Values) {
			req.Response = validators.SanitizeString(form.Get("response"), 5000)
		}); err != nil {
			pages.fail(w, r, back, err)
			return
		}

		review, err := svc.Reply(r.Context(), reviewID, sellerID, req.Response)
		if err != nil {
			pages.fail(w, r, back, err)
			return
		}
		pages.done(w, r, back, review, "Response added to review.")
	}
}

// ProductReport files a report against a listing for admin review.
func ProductReport(svc reports.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, "/products", err)
			return
		}
		back := "/products/" + productID.String()
		reporterID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}

		var req reportRequest
		if err := validators.DecodeRequest(r, &req, func(form url.Values) {
			req.Reason = validators.SanitizeString(form.Get("reason"), 2000)
		}); err != nil {
			pages.fail(w, r, back, err)
			return
		}

		report, err := svc.Report(r.Context(), productID, reporterID, req.Reason)
		if err != nil {
			pages.fail(w, r, back, err)
			return
		}
		if responses.WantsJSON(r) {
			responses.WriteSuccessStatus(w, http.StatusCreated, report)
			return
		}
		pages.done(w, r, back, report, "Thank you for your report. We'll review it shortly.")
	}
}
