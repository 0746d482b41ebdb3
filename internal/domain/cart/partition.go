package cart

// StoreGroup is the set of line items submitted as one order to one store.
type StoreGroup struct {
	StoreID string
	Items   []LineItem
}

// Partition groups the line items by store. Groups follow the order in
// which each store first appears in the cart and items keep their
// insertion order within a group.
func (e *Engine) Partition() []StoreGroup {
	var groups []StoreGroup
	index := make(map[string]int, MaxStores)
	for _, item := range e.items {
		i, ok := index[item.StoreID]
		if !ok {
			i = len(groups)
			index[item.StoreID] = i
			groups = append(groups, StoreGroup{StoreID: item.StoreID})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}
