// Package prompt renders validated planning requests into the instruction
// strings sent to the model. Pure string building, no model calls.
package prompt

import (
	"fmt"
	"time"

	"finplan/models"
)

const homePurchaseTemplate = `You are a financial advisor specializing in home purchases. Provide a detailed assessment of whether a potential home buyer can afford a home, and offer personalized recommendations.

Here are the buyer's details:
- Income: $%v per year
- Total Monthly Debt: $%v
- Total Liquid Assets: $%v
- Zip Code: %s (for local property tax estimation)
- Credit Score: %d (for interest rate, in addition to current trends)
- User input: %s (if applicable)

Based on this information, please provide the following:

1. **Affordability Assessment:** Determine if the buyer can realistically afford a home and come up with a price range, considering their income, debts, and assets. Explain your reasoning.
2. **Estimated Monthly Mortgage Payment:** Calculate the estimated monthly mortgage payment (principal and interest) for a home in their price range, using the provided interest rate.
3. **Estimated Property Taxes:** Provide an estimate of annual property taxes for the given zip code. (Use a reasonable estimate if exact data isn't available.)
4. **Estimated Homeowners Insurance:** Provide an estimate for annual homeowners insurance.
5. **Total Estimated Monthly Housing Costs:** Calculate the total estimated monthly housing costs (mortgage, property taxes, insurance).
6. **Recommendations:** Offer personalized recommendations to the buyer, such as:
    - Whether they should adjust their desired home price range.
    - Strategies for improving their financial situation (e.g., reducing debt, increasing savings).
    - Advice on securing a mortgage.

Please provide a clear and concise assessment, using a professional tone, but limit wording as much as possible so users can get a quick response.`

const retirementTemplate = `You are a financial advisor specializing in retirement planning. Provide a detailed assessment of whether the client is on track to retire at their target age, and offer personalized recommendations.

Here are the client's details:
- Current Age: %d
- Desired Retirement Age: %d
- Current Savings: $%v
- Current Investments: $%v
- Supplemental Retirement Income: $%v per year (pensions, Social Security, etc.)
- Annual Income: $%v
- Desired Annual Income in Retirement: $%v
- User input: %s (if applicable)

Based on this information, please provide the following:

1. **Readiness Assessment:** Determine whether the client is on track for their desired retirement age and income. Explain your reasoning.
2. **Projected Nest Egg:** Estimate the savings and investments the client will have at retirement, assuming reasonable growth and contribution rates.
3. **Income Gap Analysis:** Compare the income their projected nest egg can sustain against their desired retirement income.
4. **Recommendations:** Offer personalized recommendations, such as:
    - Adjustments to savings rate or investment allocation.
    - Whether the target retirement age or income is realistic.
    - Strategies for closing any projected shortfall.

Please provide a clear and concise assessment, using a professional tone, but limit wording as much as possible so users can get a quick response.`

const researchNote = `

Today's date is %s. You have access to Internet lookup tools (web_search and web_fetch). Use them to ground interest rates, local costs, and current market conditions in real data before giving your final answer.`

func HomePurchase(req models.HousePurchaseRequest) string {
	return fmt.Sprintf(homePurchaseTemplate,
		req.Income, req.TotalMonthlyDebt, req.TotalLiquidAssets,
		req.ZipCode, req.CreditScore, req.UserInput)
}

func Retirement(req models.RetirementRequest) string {
	return fmt.Sprintf(retirementTemplate,
		req.CurrentAge, req.RetirementAge,
		req.CurrentSavings, req.CurrentInvestments, req.SupplementalRetirementIncome,
		req.AnnualIncome, req.DesiredAnnualIncomeInRetirement, req.UserInput)
}

// HomePurchaseResearch is the tool-augmented variant. It embeds the given
// timestamp, so unlike the plain variants it is not reproducible across calls.
func HomePurchaseResearch(req models.HousePurchaseRequest, now time.Time) string {
	return HomePurchase(req) + fmt.Sprintf(researchNote, now.Format("Monday, January 2, 2006"))
}

func RetirementResearch(req models.RetirementRequest, now time.Time) string {
	return Retirement(req) + fmt.Sprintf(researchNote, now.Format("Monday, January 2, 2006"))
}
