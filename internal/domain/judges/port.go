package judges

// Resolver port untuk lookup judge
type Resolver interface {
	Resolve(id ID) (Judge, bool)
	List() []Judge
}
