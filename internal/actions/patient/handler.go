// internal/actions/patient/handler.go
package patient

import (
	"context"

	"carepulse/internal/actions"
	apperrors "carepulse/internal/common/errors"
	"carepulse/internal/common/logger"
	"carepulse/internal/common/observability"
	"carepulse/internal/models"
	"carepulse/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

const (
	ActionCreateUser      = "create-user"
	ActionGetUser         = "get-user"
	ActionRegisterPatient = "register-patient"
	ActionGetPatient      = "get-patient"
)

// Handler persists users and their patient records.
type Handler struct {
	config *Config
	store  store.Store
	views  actions.Revalidator
	obs    *observability.Observability
	logger logger.Logger
}

func NewHandler(config *Config, st store.Store, views actions.Revalidator, obs *observability.Observability, log logger.Logger) *Handler {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Handler{
		config: config,
		store:  st,
		views:  views,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"component": "patient-actions"}),
	}
}

// CreateUser registers a user. An email that is already registered returns
// the existing user instead of a duplicate.
func (h *Handler) CreateUser(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	var user *models.User
	err := actions.Instrument(ctx, h.obs, ActionCreateUser, func(ctx context.Context) error {
		ctx, cancel := actions.WithTimeout(ctx, h.config.Timeout)
		defer cancel()

		existing, err := h.findUserByEmail(ctx, params.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			h.logger.Info("user already registered", map[string]interface{}{"userId": existing.ID})
			user = existing
			return nil
		}

		data, err := store.Encode(params)
		if err != nil {
			return apperrors.NewDocumentCreateFailedError(h.config.UsersCollection, err)
		}
		doc, err := h.store.CreateDocument(ctx, h.config.DatabaseID, h.config.UsersCollection, store.UniqueID, data)
		actions.CountWrite(h.config.UsersCollection, actions.OpCreate, err)
		if err != nil {
			return actions.StoreError(actions.OpCreate, h.config.UsersCollection, "", err)
		}

		user = &models.User{}
		if err := store.Decode(doc, user); err != nil {
			return apperrors.NewDocumentReadFailedError(h.config.UsersCollection, err)
		}
		h.logger.Info("user created", map[string]interface{}{"userId": user.ID})
		return nil
	})
	if err != nil {
		actions.LogFailure(ctx, h.logger, ActionCreateUser, err, nil)
		return nil, err
	}
	return user, nil
}

func (h *Handler) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := actions.Instrument(ctx, h.obs, ActionGetUser, func(ctx context.Context) error {
		ctx, cancel := actions.WithTimeout(ctx, h.config.Timeout)
		defer cancel()

		doc, err := h.store.GetDocument(ctx, h.config.DatabaseID, h.config.UsersCollection, userID)
		if err != nil {
			return actions.StoreError(actions.OpRead, h.config.UsersCollection, userID, err)
		}
		if err := store.Decode(doc, &user); err != nil {
			return apperrors.NewDocumentReadFailedError(h.config.UsersCollection, err)
		}
		return nil
	}, attribute.String("userId", userID))
	if err != nil {
		actions.LogFailure(ctx, h.logger, ActionGetUser, err, map[string]interface{}{"userId": userID})
		return nil, err
	}
	return &user, nil
}

// RegisterPatient stores the intake record for params.UserID.
func (h *Handler) RegisterPatient(ctx context.Context, params models.RegisterPatientParams) (*models.Patient, error) {
	var patient models.Patient
	err := actions.Instrument(ctx, h.obs, ActionRegisterPatient, func(ctx context.Context) error {
		ctx, cancel := actions.WithTimeout(ctx, h.config.Timeout)
		defer cancel()

		data, err := store.Encode(params)
		if err != nil {
			return apperrors.NewDocumentCreateFailedError(h.config.PatientsCollection, err)
		}
		doc, err := h.store.CreateDocument(ctx, h.config.DatabaseID, h.config.PatientsCollection, store.UniqueID, data)
		actions.CountWrite(h.config.PatientsCollection, actions.OpCreate, err)
		if err != nil {
			return actions.StoreError(actions.OpCreate, h.config.PatientsCollection, "", err)
		}
		if err := store.Decode(doc, &patient); err != nil {
			return apperrors.NewDocumentReadFailedError(h.config.PatientsCollection, err)
		}

		actions.RevalidateAdmin(ctx, h.views, h.logger)
		h.logger.Info("patient registered", map[string]interface{}{
			"patientId": patient.ID,
			"userId":    patient.UserID,
		})
		return nil
	}, attribute.String("userId", params.UserID))
	if err != nil {
		actions.LogFailure(ctx, h.logger, ActionRegisterPatient, err, map[string]interface{}{"userId": params.UserID})
		return nil, err
	}
	return &patient, nil
}

// GetPatient returns the patient record registered by userID.
func (h *Handler) GetPatient(ctx context.Context, userID string) (*models.Patient, error) {
	var patient models.Patient
	err := actions.Instrument(ctx, h.obs, ActionGetPatient, func(ctx context.Context) error {
		ctx, cancel := actions.WithTimeout(ctx, h.config.Timeout)
		defer cancel()

		docs, err := h.store.ListDocuments(ctx, h.config.DatabaseID, h.config.PatientsCollection,
			store.Equal("userId", userID), store.Limit(1))
		if err != nil {
			return actions.StoreError(actions.OpRead, h.config.PatientsCollection, userID, err)
		}
		if len(docs) == 0 {
			return apperrors.NewDocumentNotFoundError(h.config.PatientsCollection, userID).
				WithMetadata("userId", userID)
		}
		if err := store.Decode(docs[0], &patient); err != nil {
			return apperrors.NewDocumentReadFailedError(h.config.PatientsCollection, err)
		}
		return nil
	}, attribute.String("userId", userID))
	if err != nil {
		actions.LogFailure(ctx, h.logger, ActionGetPatient, err, map[string]interface{}{"userId": userID})
		return nil, err
	}
	return &patient, nil
}

func (h *Handler) findUserByEmail(ctx context.Context, email string) (*models.User, error) {
	docs, err := h.store.ListDocuments(ctx, h.config.DatabaseID, h.config.UsersCollection,
		store.Equal("email", email), store.Limit(1))
	if err != nil {
		return nil, actions.StoreError(actions.OpRead, h.config.UsersCollection, "", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	var user models.User
	if err := store.Decode(docs[0], &user); err != nil {
		return nil, apperrors.NewDocumentReadFailedError(h.config.UsersCollection, err)
	}
	return &user, nil
}
