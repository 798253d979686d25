package models

var (
	LoadProductCost      = loadProductCost
	FillProductCostCache = fillProductCostCache
)
