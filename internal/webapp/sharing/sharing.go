package sharing

import (
	"context"
	"net/http"

	"nuha.dev/locshare/internal/contact"
	"nuha.dev/locshare/internal/position"
	"nuha.dev/locshare/internal/tracking"
	"nuha.dev/locshare/internal/webapp/common"
)

type ChannelRequestModel struct {
	UserId string `json:"userId" validate:"required"`
}

type ReportPositionRequestModel struct {
	UserId string           `json:"userId" validate:"required"`
	Lat    *float64         `json:"lat" validate:"required"`
	Lng    *float64         `json:"lng" validate:"required"`
	Acc    float64          `json:"acc"`
	Ts     common.Timestamp `json:"ts"`
}

type HistoryResponseModel struct {
	UserId string            `json:"userId"`
	Points []position.Sample `json:"points"`
}

type CreateContactRequestModel struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

type UpdateContactRequestModel struct {
	UserId string `json:"userId" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Phone  string `json:"phone" validate:"required"`
}

type ContactsResponseModel struct {
	Contacts []contact.Contact `json:"contacts"`
}

type SharingApi struct {
	svc *tracking.Service
}

func NewSharingApi(svc *tracking.Service) *SharingApi {
	return &SharingApi{svc: svc}
}

func (api *SharingApi) ReportPosition(ctx context.Context, req *ReportPositionRequestModel, res *common.BasicResponse) error {
	s := &position.Sample{Latitude: *req.Lat, Longitude: *req.Lng, Accuracy: req.Acc, CapturedAt: req.Ts.Time()}
	if err := api.svc.ReportPosition(ctx, req.UserId, s); err != nil {
		return err
	}
	res.Status = http.StatusOK
	res.Message = "location received"
	return nil
}

func (api *SharingApi) StartSharing(ctx context.Context, req *ChannelRequestModel, res *common.BasicResponse) error {
	api.svc.StartSharing(ctx, req.UserId)
	res.Status = http.StatusOK
	res.Message = "sharing started"
	return nil
}

func (api *SharingApi) StopSharing(ctx context.Context, req *ChannelRequestModel, res *common.BasicResponse) error {
	api.svc.Stop(ctx, req.UserId)
	res.Status = http.StatusOK
	res.Message = "sharing stopped"
	return nil
}

func (api *SharingApi) ReplayHistory(ctx context.Context, req *ChannelRequestModel, res *HistoryResponseModel) error {
	points, err := api.svc.ReplayHistory(ctx, req.UserId)
	if err != nil {
		return err
	}
	res.UserId = req.UserId
	res.Points = points
	return nil
}

func (api *SharingApi) ClearHistory(ctx context.Context, req *ChannelRequestModel, res *common.BasicResponse) error {
	if err := api.svc.ClearHistory(ctx, req.UserId); err != nil {
		return err
	}
	res.Status = http.StatusOK
	res.Message = "history cleared"
	return nil
}

func (api *SharingApi) GetContacts(ctx context.Context, res *ContactsResponseModel) error {
	list, err := api.svc.ListContacts(ctx)
	if err != nil {
		return err
	}
	res.Contacts = list
	return nil
}

func (api *SharingApi) CreateContact(ctx context.Context, req *CreateContactRequestModel, res *contact.Contact) error {
	c, err := api.svc.CreateContact(ctx, req.Name, req.Phone)
	if err != nil {
		return err
	}
	*res = *c
	return nil
}

func (api *SharingApi) UpdateContact(ctx context.Context, req *UpdateContactRequestModel, res *contact.Contact) error {
	c := &contact.Contact{ChannelId: req.UserId, Name: req.Name, Phone: req.Phone}
	if err := api.svc.UpdateContact(ctx, c); err != nil {
		return err
	}
	*res = *c
	return nil
}

func (api *SharingApi) DeleteContact(ctx context.Context, req *ChannelRequestModel, res *common.BasicResponse) error {
	if err := api.svc.DeleteContact(ctx, req.UserId); err != nil {
		return err
	}
	res.Status = http.StatusOK
	res.Message = "contact deleted"
	return nil
}
