package trader

import "github.com/hamgua/alpha-arena-okx/models"

// Exchange 交易所能力抽象，由 exchange.Client 实现
type Exchange interface {
	FetchOHLCV(symbol, timeframe string, limit int) ([]models.Candle, error)
	FetchBalance() (float64, error)
	FetchPosition(symbol string) (*models.Position, error)
	PlaceMarketOrder(symbol, side string, size float64, reduceOnly bool) (models.OrderResult, error)
	FetchAlgoOrders(symbol string) ([]models.AlgoOrder, error)
	PlaceAlgoOrder(symbol string, kind models.AlgoOrderKind, side string, size, triggerPrice float64) (string, error)
	CancelAlgoOrders(symbol string, algoIDs []string) error
}
