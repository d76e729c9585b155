package attribution

import (
	"net/http"

	M "multitouch/model"
	"multitouch/model/model"
	U "multitouch/util"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	ScoreStatusAttributed = "attributed"
	ScoreStatusNotFound   = "not_found"
	ScoreStatusNoTouches  = "no_touches"
)

var (
	// ErrStorage - Underlying store failure. Not retried, the caller decides.
	ErrStorage = errors.New("attribution storage failure")
	// ErrInvalidMethod - Unrecognized method id on the single method path.
	ErrInvalidMethod = model.ErrInvalidAttributionMethod
)

// ScoreSummary - Outcome of scoring one conversion. Credits are set only
// when the status is attributed.
type ScoreSummary struct {
	ConversionID string                                         `json:"conversion_id"`
	Status       string                                         `json:"status"`
	TouchesCount int                                            `json:"touches_count"`
	Credits      map[model.AttributionMethod]map[string]float64 `json:"credits,omitempty"`
}

type Calculator struct {
	store        M.Model
	lookbackDays int
	methodConfig *model.AttributionMethodConfig
}

func NewCalculator(store M.Model, lookbackDays int, methodConfig *model.AttributionMethodConfig) *Calculator {
	if methodConfig == nil {
		methodConfig = model.DefaultAttributionMethodConfig()
	}
	return &Calculator{store: store, lookbackDays: lookbackDays, methodConfig: methodConfig}
}

// GetLookbackWindow - Touches between from and to, both inclusive, are
// eligible for the credit of a conversion at convertedAt.
func (c *Calculator) GetLookbackWindow(convertedAt int64) (int64, int64) {
	return convertedAt - U.DaysToSeconds(c.lookbackDays), convertedAt
}

// ScoreConversion - Computes and stores the credits of the conversion for the
// given methods, all methods when empty. Results of a method are replaced
// on every call.
func (c *Calculator) ScoreConversion(conversionID string,
	methods []model.AttributionMethod) (*ScoreSummary, error) {

	if len(methods) == 0 {
		methods = model.AttributionMethods
	}
	for _, method := range methods {
		if !method.IsValid() {
			return nil, errors.Wrapf(ErrInvalidMethod, "method %s", method)
		}
	}

	logCtx := log.WithField("conversion_id", conversionID)
	summary := &ScoreSummary{ConversionID: conversionID}

	conversion, errCode := c.store.GetConversion(conversionID)
	if errCode == http.StatusNotFound {
		summary.Status = ScoreStatusNotFound
		return summary, nil
	}
	if errCode != http.StatusFound {
		return nil, errors.Wrapf(ErrStorage, "failed to get conversion %s", conversionID)
	}

	from, to := c.GetLookbackWindow(conversion.ConvertedAt)
	touches, errCode := c.store.GetTouchesByVisitorIDInRange(conversion.VisitorID, from, to)
	if errCode == http.StatusNotFound {
		logCtx.Debug("No touches in lookback window of conversion.")
		summary.Status = ScoreStatusNoTouches
		return summary, nil
	}
	if errCode != http.StatusFound {
		return nil, errors.Wrapf(ErrStorage, "failed to get touches of conversion %s", conversionID)
	}

	touchIDs := make([]string, 0, len(touches))
	for i := range touches {
		touchIDs = append(touchIDs, touches[i].ID)
	}
	if errCode := c.store.ReplaceTouchConversions(conversionID, touchIDs); errCode != http.StatusAccepted {
		return nil, errors.Wrapf(ErrStorage, "failed to link touches of conversion %s", conversionID)
	}

	summary.Credits = make(map[model.AttributionMethod]map[string]float64, len(methods))
	for _, method := range methods {
		credits := model.ApplyAttribution(method, touches, conversion.ConvertedAt, c.methodConfig)
		if creditsSum := model.GetCreditsSum(credits); !U.FloatEquals(creditsSum, 1, 1e-9) {
			logCtx.WithFields(log.Fields{"method": method, "credits_sum": creditsSum}).
				Warn("Credits of conversion do not sum to one.")
		}
		if errCode := c.store.ReplaceAttributionResults(conversionID, method, credits); errCode != http.StatusAccepted {
			return nil, errors.Wrapf(ErrStorage, "failed to store %s results of conversion %s",
				method, conversionID)
		}
		summary.Credits[method] = credits
	}

	summary.Status = ScoreStatusAttributed
	summary.TouchesCount = len(touches)

	logCtx.WithFields(log.Fields{"touches": len(touches), "methods": methods}).
		Debug("Scored conversion.")
	return summary, nil
}

// ScoreConversionForMethod - Single method re-score. Unknown method ids are
// rejected with ErrInvalidMethod instead of falling back to Last Touch.
func (c *Calculator) ScoreConversionForMethod(conversionID, method string) (*ScoreSummary, error) {
	attributionMethod, err := model.ParseAttributionMethod(method)
	if err != nil {
		return nil, err
	}

	return c.ScoreConversion(conversionID, []model.AttributionMethod{attributionMethod})
}
